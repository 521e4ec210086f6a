package types

// ReportArgs represents the command-line arguments of the report command.
type ReportArgs struct {
	From       string
	To         string
	Hub        string
	Component  string
	User       string
	UserGroup  string
	Limit      int
	ReportName string
	ReportType []string
	Dir        string
}
