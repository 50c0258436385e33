package cpu

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	stateEntry  = "cpu_state.json"
	memoryEntry = "memory.bin"
)

// machineState is the JSON part of a snapshot.
type machineState struct {
	Regs   [8]uint16 `json:"regs"`
	N      bool      `json:"n"`
	Z      bool      `json:"z"`
	V      bool      `json:"v"`
	C      bool      `json:"c"`
	Halted bool      `json:"halted"`
	Steps  int       `json:"steps"`
}

// HibernateToBytes serialises registers, flags and memory into a ZIP archive
// holding cpu_state.json and memory.bin (little-endian words).
func (c *CPU) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := machineState{
		Regs:   c.Regs,
		N:      c.N,
		Z:      c.Z,
		V:      c.V,
		C:      c.C,
		Halted: c.Halted,
		Steps:  c.Steps,
	}
	stateJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("hibernate: marshal state: %w", err)
	}
	if err := writeZipEntry(zw, stateEntry, stateJSON); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, memoryEntry, uint16SliceToLE(c.Memory[:])); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("hibernate: close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes loads a snapshot produced by HibernateToBytes.
func (c *CPU) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("restore: open archive: %w", err)
	}
	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	stateJSON, err := readZipEntry(fileMap, stateEntry)
	if err != nil {
		return err
	}
	var state machineState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return fmt.Errorf("restore: parse %s: %w", stateEntry, err)
	}

	mem, err := readZipEntry(fileMap, memoryEntry)
	if err != nil {
		return err
	}
	if len(mem) != MemoryWords*2 {
		return fmt.Errorf("restore: %s has %d bytes, want %d", memoryEntry, len(mem), MemoryWords*2)
	}

	c.Regs = state.Regs
	c.Regs[0] = 0
	c.N, c.Z, c.V, c.C = state.N, state.Z, state.V, state.C
	c.Halted = state.Halted
	c.Steps = state.Steps
	leToUint16Slice(mem, c.Memory[:])
	return nil
}

func (c *CPU) HibernateToFile(path string) error {
	data, err := c.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *CPU) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("hibernate: create %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("restore: missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("restore: open %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func uint16SliceToLE(src []uint16) []byte {
	out := make([]byte, len(src)*2)
	for i, v := range src {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func leToUint16Slice(src []byte, dst []uint16) {
	for i := range dst {
		if i*2+1 < len(src) {
			dst[i] = binary.LittleEndian.Uint16(src[i*2:])
		}
	}
}
