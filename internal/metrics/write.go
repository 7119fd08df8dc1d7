package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfileAtomic writes the gathered metrics to path through a
// temporary file and a rename, then applies mode.
func WriteTextfileAtomic(path string, g prometheus.Gatherer, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}
