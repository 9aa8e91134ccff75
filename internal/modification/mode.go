package modification

// Mode decides how a run's transaction ends. Both modes execute the same
// statements; only the commit decision differs.
type Mode int

const (
	ModeDryRun Mode = iota
	ModeCommit
)

func (m Mode) String() string {
	switch m {
	case ModeDryRun:
		return "dry_run"
	case ModeCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// IsDryRun is a convenience for units of work that tailor their messages.
func (m Mode) IsDryRun() bool {
	return m == ModeDryRun
}
