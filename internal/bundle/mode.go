package bundle

// Mode selects what a run does once the configuration is assembled.
type Mode int

const (
	ModeUnspecified Mode = iota
	ModeBuild
	ModeServe
)

// ParseMode maps the positional command line argument to a Mode. Anything
// other than "build" or "serve", including the empty string, is unspecified.
func ParseMode(arg string) Mode {
	switch arg {
	case "build":
		return ModeBuild
	case "serve":
		return ModeServe
	default:
		return ModeUnspecified
	}
}

func (m Mode) String() string {
	switch m {
	case ModeBuild:
		return "build"
	case ModeServe:
		return "serve"
	default:
		return "unspecified"
	}
}
