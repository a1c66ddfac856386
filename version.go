package parac

const (
	// Version of the runtime driver.
	Version = "0.1.0-alpha"
	// ABIVersion identifies the struct layouts generated code is linked against.
	// Generated headers embed it as __PARAC_VERSION__.
	ABIVersion = "1"
)
