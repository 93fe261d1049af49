// Package file provides file-based persistence for local development and
// tests. Each record is stored as one JSON document under the root
// directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowhook/flowhook/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file system.
type Persistence struct {
	root          string
	triggerRepo   *TriggerRepository
	providerRepo  *ProviderRepository
	webhookRepo   *WebhookRepository
	taskRepo      *RecurringTaskRepository
	deploymentRepo *DeploymentRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts both a plain path and a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.triggerRepo = &TriggerRepository{persistence: p}
	p.providerRepo = &ProviderRepository{persistence: p}
	p.webhookRepo = &WebhookRepository{persistence: p}
	p.taskRepo = &RecurringTaskRepository{persistence: p}
	p.deploymentRepo = &DeploymentRepository{persistence: p}

	return p
}

func (p *Persistence) TriggerRepository() persistence.TriggerRepository {
	return p.triggerRepo
}

func (p *Persistence) ProviderRepository() persistence.ProviderRepository {
	return p.providerRepo
}

func (p *Persistence) WebhookRepository() persistence.WebhookRepository {
	return p.webhookRepo
}

func (p *Persistence) RecurringTaskRepository() persistence.RecurringTaskRepository {
	return p.taskRepo
}

func (p *Persistence) DeploymentRepository() persistence.DeploymentRepository {
	return p.deploymentRepo
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("file persistence root unavailable: %w", err)
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// Collection directory names under the persistence root.
const (
	triggersDir    = "triggers"
	providersDir   = "providers"
	webhooksDir    = "webhooks"
	tasksDir       = "recurring_tasks"
	deploymentsDir = "deployments"
)

func (p *Persistence) collectionPath(collection string) string {
	return filepath.Join(p.root, collection)
}

func (p *Persistence) recordPath(collection, id string) string {
	return filepath.Join(p.root, collection, id+".json")
}

func (p *Persistence) writeRecord(collection, id string, record any) error {
	dir := p.collectionPath(collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s record %s: %w", collection, id, err)
	}

	if err := os.WriteFile(p.recordPath(collection, id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s record %s: %w", collection, id, err)
	}

	return nil
}

// readRecord unmarshals one record into out. Returns notFound when the
// record does not exist.
func (p *Persistence) readRecord(collection, id string, out any, notFound error) error {
	data, err := os.ReadFile(p.recordPath(collection, id))
	if errors.Is(err, os.ErrNotExist) {
		return notFound
	}

	if err != nil {
		return fmt.Errorf("failed to read %s record %s: %w", collection, id, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s record %s: %w", collection, id, err)
	}

	return nil
}

func (p *Persistence) deleteRecord(collection, id string) error {
	err := os.Remove(p.recordPath(collection, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s record %s: %w", collection, id, err)
	}

	return nil
}

// eachRecord invokes fn with the raw bytes of every record in a collection.
func (p *Persistence) eachRecord(collection string, fn func(data []byte) error) error {
	entries, err := os.ReadDir(p.collectionPath(collection))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to list %s records: %w", collection, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.collectionPath(collection), entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s record %s: %w", collection, entry.Name(), err)
		}

		if err := fn(data); err != nil {
			return err
		}
	}

	return nil
}
