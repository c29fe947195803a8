package contracts

type InputFlags struct {
	InputPath  string
	OutputPath string
	EnginePath string
	AutoOrient bool
	SRGB       bool
	ShowMeta   bool
}
