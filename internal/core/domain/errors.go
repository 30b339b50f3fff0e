package domain

import "go.trai.ch/zerr"

var (
	// ErrUnknownOption is returned when a requested option is not declared by the recipe.
	ErrUnknownOption = zerr.New("unknown option")

	// ErrConflictingOptions is returned when more than one member of an exclusive group is selected.
	ErrConflictingOptions = zerr.New("conflicting options")

	// ErrInvalidRecipe is returned when a recipe document fails structural validation.
	ErrInvalidRecipe = zerr.New("invalid recipe")

	// ErrRecipeNotFound is returned when no recipe file can be located for a name.
	ErrRecipeNotFound = zerr.New("recipe not found")

	// ErrInvalidPredicate is returned when a condition cannot be parsed or evaluated.
	ErrInvalidPredicate = zerr.New("invalid predicate")

	// ErrInvalidVersion is returned when a platform version string cannot be compared.
	ErrInvalidVersion = zerr.New("invalid version")

	// ErrUnresolvedPlaceholder is returned when a template references an unknown variable.
	ErrUnresolvedPlaceholder = zerr.New("unresolved placeholder")

	// ErrUnsatisfiedDependency is returned when a required dependency is not present.
	ErrUnsatisfiedDependency = zerr.New("unsatisfied dependency")

	// ErrFetchFailed is returned when no source location could be downloaded.
	ErrFetchFailed = zerr.New("fetch failed")

	// ErrChecksumMismatch is returned when downloaded content does not match its digest.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrUnsupportedArchive is returned when an archive format is not recognised.
	ErrUnsupportedArchive = zerr.New("unsupported archive")

	// ErrUnsafeArchivePath is returned when an archive entry would escape the extraction root.
	ErrUnsafeArchivePath = zerr.New("unsafe archive path")

	// ErrPatchFailed is returned when a patch does not apply.
	ErrPatchFailed = zerr.New("patch failed")

	// ErrStepFailed is returned when a fatal build step exits unsuccessfully.
	ErrStepFailed = zerr.New("build step failed")

	// ErrCommandNotFound is returned when a step executable cannot be found on PATH.
	ErrCommandNotFound = zerr.New("command not found")

	// ErrInstallFileMissing is returned when a required install file does not exist.
	ErrInstallFileMissing = zerr.New("install file missing")

	// ErrInvalidSnapshot is returned when a snapshot override is out of range.
	ErrInvalidSnapshot = zerr.New("invalid snapshot")

	// ErrReceiptNotFound is returned when no receipt is stored for a recipe.
	ErrReceiptNotFound = zerr.New("no install receipt")
)
