package ports

import "go.trai.ch/kiln/internal/core/domain"

// Installer copies build products into the install prefix.
//
//go:generate mockgen -destination=mocks/installer_mock.go -package=mocks -source=installer.go
type Installer interface {
	// Install copies files from buildDir into prefix and returns the installed paths.
	// Glob patterns are expanded relative to buildDir.
	Install(buildDir, prefix string, files []domain.InstallFile) ([]string, error)
}
