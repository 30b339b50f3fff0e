package ports

import "go.trai.ch/kiln/internal/core/domain"

// PlatformDetector reports facts about the host.
//
//go:generate mockgen -source=detector.go -destination=mocks/mock_detector.go -package=mocks
type PlatformDetector interface {
	Detect() (domain.Platform, error)
}
