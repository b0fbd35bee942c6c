package control

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the conventional control file name inside the project
// directory.
const DefaultFileName = "control.yaml"

// DefaultYAML seeds new projects with the built-in modules.
const DefaultYAML = `# overview control file
version: 1

# Modules listed here can be viewed but not changed.
locked_modules: []

proposals:
  - name: initial
    stage: initial
    mode: installation,autoinstallation
    kind: initial
    label: Installation Settings
    enable_skip: false
    modules:
      - name: storage
        presentation_order: 10
        config:
          disks:
            - {name: sda, size_gb: 64}
          min_root_gb: 10
          filesystem: btrfs
      - name: bootloader
        presentation_order: 20
      - name: software
        presentation_order: 30
        config:
          desktops: [gnome, kde, none]
      - name: network
        presentation_order: 40
        config:
          hostname: install
          interfaces:
            - {name: eth0}
      - name: security
        presentation_order: 50
    tabs:
      - label: Overview
        modules: [storage, software, security]
      - label: Expert
        modules: [storage, bootloader, software, network, security]

  - name: network-only
    stage: "*"
    mode: "*"
    kind: network
    label: Network Settings
    modules:
      - network
`

// ParseYAML decodes and validates a control document.
func ParseYAML(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, fmt.Errorf("control: document is empty")
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("control: decode: %w", err)
	}
	return doc.Normalized()
}

// LoadReader reads a control document from r.
func LoadReader(r io.Reader) (Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("control: read: %w", err)
	}
	return ParseYAML(content)
}

// LoadFile loads a control document from path.
func LoadFile(path string) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("control: read %s: %w", path, err)
	}
	doc, parseErr := ParseYAML(content)
	if parseErr != nil {
		return Document{}, fmt.Errorf("control: %s: %w", path, parseErr)
	}
	return doc, nil
}

// Default returns the parsed built-in control document.
func Default() Document {
	doc, err := ParseYAML([]byte(DefaultYAML))
	if err != nil {
		panic(err)
	}
	return doc
}
