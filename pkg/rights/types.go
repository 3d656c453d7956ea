// Package rights resolves a user's per-project export privileges and reduces
// them to an export-capability judgment and a de-identification tier. The
// gateway only ever reads rights; it never assigns them.
package rights

// ExportLevel is the ordinal export-tool permission assigned to a user in a
// project. The platform stores it as a numeric code where higher codes mean
// stricter output handling; ParseExportLevel folds unknown codes to
// LevelNone so an unrecognized assignment can never widen access.
type ExportLevel int

const (
	// LevelNone grants no export capability.
	LevelNone ExportLevel = iota
	// LevelLabelOnly allows export with identifiers, free text, notes and
	// dates suppressed and the record identifier pseudonymized.
	LevelLabelOnly
	// LevelDeidentified allows export with identifiers and dates suppressed
	// and the record identifier pseudonymized.
	LevelDeidentified
	// LevelFull allows export of the complete data set.
	LevelFull
)

// Stored permission codes in the platform's user_rights table.
const (
	storedNone         = 0
	storedFull         = 1
	storedDeidentified = 2
	storedLabelOnly    = 3
)

// ParseExportLevel maps a stored permission code to a typed level.
func ParseExportLevel(code int) ExportLevel {
	switch code {
	case storedFull:
		return LevelFull
	case storedDeidentified:
		return LevelDeidentified
	case storedLabelOnly:
		return LevelLabelOnly
	default:
		return LevelNone
	}
}

func (l ExportLevel) String() string {
	switch l {
	case LevelLabelOnly:
		return "label-only"
	case LevelDeidentified:
		return "de-identified"
	case LevelFull:
		return "full"
	default:
		return "none"
	}
}

// Privileges is the rights record for one (project, user) pair.
type Privileges struct {
	ProjectID   int
	Username    string
	ExportLevel ExportLevel
	// ReportsAccess gates use of the reporting feature independently of the
	// export level. It is true only when the stored flag is exactly the
	// canonical enabled value.
	ReportsAccess bool
}

// Tier is the suppression profile applied to exported report output.
type Tier struct {
	SuppressIdentifiers bool `json:"suppress_identifiers"`
	SuppressFreeText    bool `json:"suppress_free_text"`
	SuppressNotes       bool `json:"suppress_notes"`
	SuppressDates       bool `json:"suppress_dates"`
	HashRecordID        bool `json:"hash_record_id"`
}

// Suppresses reports whether the tier suppresses anything at all. A tier
// that suppresses nothing uses the plain fetch path.
func (t Tier) Suppresses() bool {
	return t.SuppressIdentifiers || t.SuppressFreeText || t.SuppressNotes || t.SuppressDates || t.HashRecordID
}
