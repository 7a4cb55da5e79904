package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// MaxDevices is the number of device slots offered by the selection menu
	MaxDevices = 5

	maxScanLines  = 512
	maxLineLength = 511
)

var (
	// ErrScanLaunch is returned when the bus-scan tool could not be started.
	// The table returned alongside it is empty but usable.
	ErrScanLaunch = errors.New("bus scan could not be launched")

	// ErrNoSuchDevice is returned when selecting a slot that holds no device
	ErrNoSuchDevice = errors.New("no such device")
)

// DeviceRecord represents one optical drive reported by the bus scan
type DeviceRecord struct {
	BusNumber    string // SCSI address as printed by the tool, e.g. "0,1,0"
	Manufacturer string
	Model        string
}

// String renders the record the way the device menu shows it
func (d DeviceRecord) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Manufacturer, d.Model, d.BusNumber)
}

// DeviceTable holds the drives found by a single scan and the current selection.
// Slots are filled in scan order; the first device is selected by default.
type DeviceTable struct {
	slots    [MaxDevices]DeviceRecord
	count    int
	selected int
}

// NewDeviceTable returns an empty table
func NewDeviceTable() *DeviceTable {
	return &DeviceTable{}
}

// add appends a record, returning false once the table is full
func (t *DeviceTable) add(rec DeviceRecord) bool {
	if t.full() {
		return false
	}
	t.slots[t.count] = rec
	t.count++
	return true
}

// Len returns the number of discovered devices
func (t *DeviceTable) Len() int {
	return t.count
}

// full reports whether every slot is taken
func (t *DeviceTable) full() bool {
	return t.count >= MaxDevices
}

// Devices returns a copy of the filled slots in scan order
func (t *DeviceTable) Devices() []DeviceRecord {
	devices := make([]DeviceRecord, t.count)
	copy(devices, t.slots[:t.count])
	return devices
}

// At returns the device in slot i
func (t *DeviceTable) At(i int) (DeviceRecord, error) {
	if i < 0 || i >= t.count {
		return DeviceRecord{}, fmt.Errorf("slot %d: %w", i, ErrNoSuchDevice)
	}
	return t.slots[i], nil
}

// Select makes slot i the selected device
func (t *DeviceTable) Select(i int) error {
	if i < 0 || i >= t.count {
		return fmt.Errorf("slot %d: %w", i, ErrNoSuchDevice)
	}
	t.selected = i
	return nil
}

// SelectedIndex returns the selected slot
func (t *DeviceTable) SelectedIndex() int {
	return t.selected
}

// Selected returns the selected device, or false when no device was found
func (t *DeviceTable) Selected() (DeviceRecord, bool) {
	if t.count == 0 {
		return DeviceRecord{}, false
	}
	return t.slots[t.selected], true
}

// ParseScanbus reads a bus-scan report and collects the device lines it contains
func ParseScanbus(r io.Reader) *DeviceTable {
	lines, _ := readScanLines(r)
	table, _ := parseScanLines(lines)
	return table
}

// readScanLines reads at most maxScanLines lines, truncating each to maxLineLength bytes.
// Lines read before an error are returned together with it.
func readScanLines(r io.Reader) ([]string, error) {
	reader := bufio.NewReader(r)
	lines := make([]string, 0, 32)

	for len(lines) < maxScanLines {
		line, err := readLine(reader)
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, err
		}
	}

	return lines, nil
}

// readLine reads one line, keeping at most maxLineLength bytes and discarding the rest.
// A cut never splits a UTF-8 sequence.
func readLine(reader *bufio.Reader) (string, error) {
	line := make([]byte, 0, 128)
	truncated := false

	for {
		chunk, err := reader.ReadSlice('\n')
		if room := maxLineLength - len(line); len(chunk) > room {
			chunk = chunk[:room]
			truncated = true
		}
		line = append(line, chunk...)

		if err == bufio.ErrBufferFull {
			continue
		}
		if truncated {
			line = trimPartialRune(line)
		}
		return string(line), err
	}
}

// trimPartialRune drops an incomplete UTF-8 sequence left at the end of b
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

// parseScanLines turns raw report lines into a table and returns how many
// device lines were dropped because the table was full
func parseScanLines(lines []string) (*DeviceTable, int) {
	table := NewDeviceTable()
	dropped := 0

	for _, line := range lines {
		if !isDeviceLine(line) {
			continue
		}
		if !table.add(parseDeviceLine(line)) {
			dropped++
		}
	}

	return table, dropped
}

// isDeviceLine reports whether a report line describes a populated slot.
// Empty slots are marked with '*'; populated ones carry quoted vendor and model fields.
func isDeviceLine(line string) bool {
	return !strings.Contains(line, "*") && strings.Contains(line, "' ")
}

// parseDeviceLine extracts the bus address and the first two quoted fields
func parseDeviceLine(line string) DeviceRecord {
	line = strings.TrimSpace(line)

	bus, _, _ := strings.Cut(line, "\t")
	fields := quotedFields(line, 2)

	rec := DeviceRecord{BusNumber: bus}
	if len(fields) > 0 {
		rec.Manufacturer = strings.TrimSpace(fields[0])
	}
	if len(fields) > 1 {
		rec.Model = strings.TrimSpace(fields[1])
	}
	return rec
}

// quotedFields returns up to n single-quoted fields from s.
// An unterminated last field runs to the end of s.
func quotedFields(s string, n int) []string {
	fields := make([]string, 0, n)

	for len(fields) < n {
		open := strings.IndexByte(s, '\'')
		if open < 0 {
			break
		}
		s = s[open+1:]

		end := strings.IndexByte(s, '\'')
		if end < 0 {
			fields = append(fields, s)
			break
		}
		fields = append(fields, s[:end])
		s = s[end+1:]
	}

	return fields
}

// commandRunner starts a command and returns its standard output.
// Closing the returned stream reaps the process.
type commandRunner func(ctx context.Context, name string, args ...string) (io.ReadCloser, error)

// processOutput is the stdout pipe of a running command
type processOutput struct {
	io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
	err  error
}

// Close releases the pipe and waits for the process, once
func (p *processOutput) Close() error {
	p.once.Do(func() {
		p.ReadCloser.Close()
		p.err = p.cmd.Wait()
	})
	return p.err
}

// execRunner runs the command as a child process with no stdin.
// Cancelling ctx kills the command and everything it started.
func execRunner(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &processOutput{ReadCloser: stdout, cmd: cmd}, nil
}

// Scanner discovers optical drives by running a bus-scan tool
type Scanner struct {
	Command string
	Args    []string
	Timeout time.Duration // zero waits for the tool indefinitely

	logger *zap.Logger
	run    commandRunner
}

// NewScanner creates a scanner from configuration
func NewScanner(cfg ScannerConfig, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		Command: cfg.Command,
		Args:    cfg.Args,
		Timeout: cfg.Timeout,
		logger:  logger.With(zap.String("component", "scanner")),
		run:     execRunner,
	}
}

// Scan runs the bus-scan tool once and returns the drives it reports.
// The returned table is never nil. A launch failure yields an empty table and
// an error wrapping ErrScanLaunch; a non-zero exit status is only logged.
func (s *Scanner) Scan(ctx context.Context) (*DeviceTable, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	logger := s.logger.With(zap.String("command", s.Command), zap.Strings("args", s.Args))

	out, err := s.run(ctx, s.Command, s.Args...)
	if err != nil {
		logger.Warn("Bus scan could not be launched", zap.Error(err))
		return NewDeviceTable(), fmt.Errorf("%w: %s: %w", ErrScanLaunch, s.Command, err)
	}

	var (
		closeOnce sync.Once
		closeErr  error
	)
	closeOutput := func() error {
		closeOnce.Do(func() { closeErr = out.Close() })
		return closeErr
	}

	// unblocks the read when ctx expires while the output is still open
	stop := context.AfterFunc(ctx, func() { closeOutput() })
	defer stop()

	lines, readErr := readScanLines(out)
	if err := closeOutput(); err != nil {
		logger.Warn("Bus scan exited with error", zap.Error(err))
	}
	if readErr != nil {
		logger.Warn("Bus scan output truncated", zap.Int("lines", len(lines)), zap.Error(readErr))
	}

	table, dropped := parseScanLines(lines)
	if dropped > 0 {
		logger.Info("Ignoring devices beyond table capacity",
			zap.Int("capacity", MaxDevices),
			zap.Int("ignored", dropped),
		)
	}
	logger.Debug("Bus scan completed",
		zap.Int("lines", len(lines)),
		zap.Int("devices", table.Len()),
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return table, fmt.Errorf("bus scan interrupted: %w", ctxErr)
	}
	return table, nil
}
