package storage

import (
	"time"
)

// AnalysisSession is one persisted analysis run: which experiment
// structure was processed and with what configuration.
type AnalysisSession struct {
	ID            int64
	CreatedAt     time.Time
	StructurePath string
	Config        *string
	Freqs         []float64
}
