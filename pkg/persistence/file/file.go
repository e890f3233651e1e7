// Package file provides file-based persistence for development and tests.
// Records are JSON documents under a root directory; a process-wide mutex
// makes status transitions atomic. Multi-instance deployments need the
// postgresql backend, whose claims are guarded by the database instead.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/relaykit/journey/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root string
	mu   sync.Mutex

	workflows  *WorkflowRepository
	delays     *DelayRepository
	watermarks *WatermarkRepository
	executions *ExecutionRepository
	entities   *EntityRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory (accepts a file:// prefix, matching database-url flags).
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflows = &WorkflowRepository{p: p}
	p.delays = &DelayRepository{p: p}
	p.watermarks = &WatermarkRepository{p: p}
	p.executions = &ExecutionRepository{p: p}
	p.entities = &EntityRepository{p: p}

	return p
}

func (p *Persistence) Workflows() persistence.WorkflowRepository    { return p.workflows }
func (p *Persistence) Delays() persistence.DelayRepository          { return p.delays }
func (p *Persistence) Watermarks() persistence.WatermarkRepository  { return p.watermarks }
func (p *Persistence) Executions() persistence.ExecutionRepository  { return p.executions }
func (p *Persistence) Entities() persistence.EntityRepository       { return p.entities }

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// write marshals a record to <root>/<collection>/<id>.json.
func (p *Persistence) write(collection, id string, record any) error {
	dir := filepath.Join(p.root, collection)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", collection, err)
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s record: %w", collection, err)
	}

	return nil
}

// read unmarshals a record, reporting existence.
func (p *Persistence) read(collection, id string, record any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(p.root, collection, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s record: %w", collection, err)
	}

	err = json.Unmarshal(data, record)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s record: %w", collection, err)
	}

	return true, nil
}

// ids lists the record ids in a collection.
func (p *Persistence) ids(collection string) ([]string, error) {
	dir := filepath.Join(p.root, collection)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", collection, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
