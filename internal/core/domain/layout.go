package domain

import "path/filepath"

const (
	// DirName is the name of the working directory kept beside a build.
	DirName = ".kiln"

	// StoreDirName is the subdirectory holding install receipts.
	StoreDirName = "store"

	// CacheDirName is the subdirectory holding downloads.
	CacheDirName = "cache"

	// DownloadsDirName is the subdirectory of the cache holding fetched sources and patches.
	DownloadsDirName = "downloads"

	// BuildDirName is the subdirectory where sources are unpacked and built.
	BuildDirName = "build"

	// RecipeDirName is the default directory searched for recipe files.
	RecipeDirName = "recipes"

	// DefaultStorePrefix is the root of installed packages when none is given.
	DefaultStorePrefix = "/usr/local"

	// CellarDirName is the directory below the store prefix holding versioned installs.
	CellarDirName = "Cellar"

	// DirPerm is the default permission for directories.
	DirPerm = 0o750

	// FilePerm is the default permission for files.
	FilePerm = 0o644

	// PrivateFilePerm is the permission for receipts.
	PrivateFilePerm = 0o600
)

// StorePath returns the receipt store location under the given work root.
func StorePath(root string) string {
	return filepath.Join(root, DirName, StoreDirName)
}

// DownloadsPath returns the download cache location under the given work root.
func DownloadsPath(root string) string {
	return filepath.Join(root, DirName, CacheDirName, DownloadsDirName)
}

// BuildPath returns the build directory for a recipe under the given work root.
func BuildPath(root, recipe, version string) string {
	return filepath.Join(BuildRoot(root), recipe+"-"+version)
}

// CachePath returns the cache root under the given work root.
func CachePath(root string) string {
	return filepath.Join(root, DirName, CacheDirName)
}

// BuildRoot returns the directory holding every build tree under the given work root.
func BuildRoot(root string) string {
	return filepath.Join(root, DirName, BuildDirName)
}

// KegPrefix returns the default install prefix of a recipe version below storePrefix.
func KegPrefix(storePrefix, name, version string) string {
	return filepath.Join(storePrefix, CellarDirName, name, version)
}
