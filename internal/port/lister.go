package port

// ImageLister lists the image files of a directory.
type ImageLister interface {
	// List returns the base names of matching files, sorted lexicographically.
	List(dir string) ([]string, error)

	// Allowed reports whether name has an accepted image extension.
	Allowed(name string) bool
}
