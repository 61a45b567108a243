package version

const (
	AppName    = "GrooveKeeper"
	AppVersion = "0.4.0"
)
