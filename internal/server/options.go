package server

// Options configures server creation.
type Options struct {
	// StorageDir roots the daemon's temporary workspace. Defaults to the
	// system temp directory.
	StorageDir string
	// CatalogPath, when set, enables the sqlite capture catalog.
	CatalogPath string
	// DictionaryPath, when set, loads a decoder dictionary used to
	// annotate scan results.
	DictionaryPath string
	// BigEndian selects the default byte order for captures; individual
	// requests may override it.
	BigEndian bool
}
