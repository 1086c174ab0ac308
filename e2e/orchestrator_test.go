// Copyright Contributors to the Opus project

package e2e

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nicc777/opus/internal/manifest"
	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/orchestrator"
	"github.com/nicc777/opus/pkg/processor"
	"github.com/nicc777/opus/pkg/state"
	"github.com/nicc777/opus/pkg/task"
)

// fileWriterProcessor writes a marker file per processed task and records
// the processing order.
type fileWriterProcessor struct {
	dir       string
	processed []string
	failFor   map[string]error
}

func (p *fileWriterProcessor) Kind() string                { return "FileWriter" }
func (p *fileWriterProcessor) Versions() []string          { return []string{"v1"} }
func (p *fileWriterProcessor) SupportedCommands() []string { return []string{"apply"} }

func (p *fileWriterProcessor) ProcessTask(tk *task.Task, _, _ string, kv *kvstore.KeyValueStore, persistence state.Persistence) (*kvstore.KeyValueStore, error) {
	if err, ok := p.failFor[tk.ID()]; ok {
		return nil, err
	}
	path := filepath.Join(p.dir, tk.ID()+".txt")
	if err := os.WriteFile(path, []byte("done"), 0o644); err != nil {
		return nil, err
	}
	persistence.SaveObjectState(tk.ID(), map[string]any{"written": path})
	p.processed = append(p.processed, tk.ID())
	return kv, nil
}

func writeManifests(dir, content string) (string, error) {
	path := filepath.Join(dir, "manifests.yaml")
	return path, os.WriteFile(path, []byte(content), 0o600)
}

var _ = Describe("Task orchestration", func() {
	var (
		workDir string
		proc    *fileWriterProcessor
		orch    *orchestrator.Tasks
	)

	BeforeEach(func() {
		workDir = GinkgoT().TempDir()
		proc = &fileWriterProcessor{dir: workDir, failFor: map[string]error{}}
		orch = orchestrator.New()
		orch.RegisterTaskProcessor(proc)
	})

	addManifests := func(content string) {
		path, err := writeManifests(workDir, content)
		Expect(err).NotTo(HaveOccurred())
		manifests, err := manifest.LoadAll([]string{path})
		Expect(err).NotTo(HaveOccurred())
		for _, m := range manifests {
			tk, err := m.ToTask(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(orch.AddTask(tk)).To(Succeed())
		}
	}

	It("processes a named task exactly once and marks it done", func() {
		addManifests(`
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: a
`)
		Expect(orch.ProcessContext("apply", "default")).To(Succeed())

		value, _ := orch.KeyValueStore().Get(processor.RunKey("a", "apply", "default"))
		Expect(value).To(Equal(processor.StatusDone))
		Expect(proc.processed).To(Equal([]string{"a"}))
		Expect(filepath.Join(workDir, "a.txt")).To(BeAnExistingFile())

		// A second run finds the markers at done and is a no-op.
		Expect(orch.ProcessContext("apply", "default")).To(Succeed())
		Expect(proc.processed).To(Equal([]string{"a"}))
	})

	It("honors environment-scoped excludes", func() {
		addManifests(`
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: b
  contextualIdentifiers:
    - type: ExecutionScope
      key: EXCLUDE
      contexts:
        - type: Environment
          names: [prod]
`)
		Expect(orch.ProcessContext("apply", "prod")).To(Succeed())
		Expect(proc.processed).To(BeEmpty())

		Expect(orch.ProcessContext("apply", "dev")).To(Succeed())
		Expect(proc.processed).To(Equal([]string{"b"}))
	})

	It("orders name dependencies before their dependants", func() {
		addManifests(`
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: y
  dependencies:
    - identifierType: ManifestName
      identifiers:
        - key: x
---
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: x
`)
		Expect(orch.ProcessContext("apply", "default")).To(Succeed())
		Expect(proc.processed).To(Equal([]string{"x", "y"}))
	})

	It("fails the run when a named dependency is missing", func() {
		addManifests(`
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: y
  dependencies:
    - identifierType: ManifestName
      identifiers:
        - key: z
`)
		err := orch.ProcessContext("apply", "default")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring(`Dependant task "z" required, but NOT FOUND`))
	})

	It("schedules every label match before the dependant", func() {
		addManifests(`
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: u
    - type: Label
      key: group
      value: core
---
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: v
    - type: Label
      key: group
      value: core
---
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: w
  dependencies:
    - identifierType: Label
      identifiers:
        - key: group
          value: core
`)
		Expect(orch.ProcessContext("apply", "default")).To(Succeed())
		Expect(proc.processed).To(HaveLen(3))
		Expect(proc.processed[2]).To(Equal("w"))
		Expect(proc.processed[:2]).To(ConsistOf("u", "v"))
	})

	It("surfaces a processor failure through the default error hook", func() {
		proc.failFor["a"] = errors.New("simulated processor failure")
		addManifests(`
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: a
`)
		err := orch.ProcessContext("apply", "default")
		Expect(err).To(HaveOccurred())

		value, _ := orch.KeyValueStore().Get(processor.RunKey("a", "apply", "default"))
		Expect(value).To(Equal(processor.StatusFailed))
	})

	It("persists object state across orchestrator instances via the file backend", func() {
		statePath := filepath.Join(workDir, "state.json")
		persistence, err := state.NewFile(statePath, nil)
		Expect(err).NotTo(HaveOccurred())

		orch = orchestrator.New(orchestrator.WithStatePersistence(persistence))
		orch.RegisterTaskProcessor(proc)
		addManifests(`
kind: FileWriter
version: v1
metadata:
  identifiers:
    - type: ManifestName
      key: persisted
`)
		Expect(orch.ProcessContext("apply", "default")).To(Succeed())
		Expect(statePath).To(BeAnExistingFile())

		reloaded, err := state.NewFile(statePath, nil)
		Expect(err).NotTo(HaveOccurred())
		saved := reloaded.GetObjectState("persisted", false)
		Expect(saved).To(HaveKey("written"))
		Expect(fmt.Sprintf("%v", saved["written"])).To(ContainSubstring("persisted.txt"))
	})
})
