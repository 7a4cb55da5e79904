package main

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scanbusHeader = `Cdrecord-ProDVD-ProDVD-Clone 3.02a09 (x86_64-pc-linux-gnu) Copyright (C) 1995-2016 Joerg Schilling
Using libscg version 'schily-0.9'.
scsibus0:
`

const scanbusTwoDrives = scanbusHeader +
	"\t0,0,0\t  0) 'HL-DT-ST' 'DVDRAM GH24NSD1 ' 'LG00' Removable CD-ROM\n" +
	"\t0,1,0\t  1) *\n" +
	"\t0,2,0\t  2) *\n" +
	"\t1,0,0\t100) 'TSSTcorp' 'CDDVDW SH-224DB ' 'SB01' Removable CD-ROM\n" +
	"\t1,1,0\t101) *\n"

func scanbusLines(n int) string {
	var b strings.Builder
	b.WriteString(scanbusHeader)
	for i := 0; i < n; i++ {
		b.WriteString("\t0," + string(rune('0'+i)) + ",0\t  " + string(rune('0'+i)) + ") 'VENDOR" + string(rune('0'+i)) + " ' 'MODEL" + string(rune('0'+i)) + " ' '1.00' Removable CD-ROM\n")
		b.WriteString("\t9,9,9\t  99) *\n")
	}
	return b.String()
}

func TestParseDeviceLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want DeviceRecord
	}{
		{
			name: "padded fields",
			line: "\t1,0,0\t'HL-DT-ST'              'DVDRAM GSA-H42N '                 1.02",
			want: DeviceRecord{BusNumber: "1,0,0", Manufacturer: "HL-DT-ST", Model: "DVDRAM GSA-H42N"},
		},
		{
			name: "cdrecord layout",
			line: "\t0,0,0\t  0) 'HL-DT-ST' 'DVDRAM GH24NSD1 ' 'LG00' Removable CD-ROM",
			want: DeviceRecord{BusNumber: "0,0,0", Manufacturer: "HL-DT-ST", Model: "DVDRAM GH24NSD1"},
		},
		{
			name: "missing model",
			line: "\t0,3,0\t  3) 'NEC     ' Removable CD-ROM",
			want: DeviceRecord{BusNumber: "0,3,0", Manufacturer: "NEC"},
		},
		{
			name: "unterminated model",
			line: "\t0,4,0\t  4) 'PLEXTOR ' 'DVDR   PX-",
			want: DeviceRecord{BusNumber: "0,4,0", Manufacturer: "PLEXTOR", Model: "DVDR   PX-"},
		},
		{
			name: "no tab",
			line: "'ASUS    ' 'DRW-24B1ST   a' ",
			want: DeviceRecord{BusNumber: "'ASUS    ' 'DRW-24B1ST   a'", Manufacturer: "ASUS", Model: "DRW-24B1ST   a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDeviceLine(tt.line))
		})
	}
}

func TestIsDeviceLine(t *testing.T) {
	assert.True(t, isDeviceLine("\t0,0,0\t  0) 'HL-DT-ST' 'DVDRAM GH24NSD1 ' 'LG00' Removable CD-ROM"))
	assert.False(t, isDeviceLine("\t0,1,0\t  1) *"))
	assert.False(t, isDeviceLine("\t0,1,0\t  1) 'A' 'B' *"))
	assert.False(t, isDeviceLine("Using libscg version 'schily-0.9'."))
	assert.False(t, isDeviceLine("scsibus0:"))
	assert.False(t, isDeviceLine(""))
}

func TestParseScanbus(t *testing.T) {
	t.Run("devices among empty slots", func(t *testing.T) {
		devices := ParseScanbus(strings.NewReader(scanbusTwoDrives))

		require.Equal(t, 2, devices.Len())
		assert.Equal(t, []DeviceRecord{
			{BusNumber: "0,0,0", Manufacturer: "HL-DT-ST", Model: "DVDRAM GH24NSD1"},
			{BusNumber: "1,0,0", Manufacturer: "TSSTcorp", Model: "CDDVDW SH-224DB"},
		}, devices.Devices())
		assert.Equal(t, 0, devices.SelectedIndex())

		selected, ok := devices.Selected()
		require.True(t, ok)
		assert.Equal(t, "0,0,0", selected.BusNumber)
	})

	t.Run("more devices than slots", func(t *testing.T) {
		devices := ParseScanbus(strings.NewReader(scanbusLines(7)))

		require.Equal(t, MaxDevices, devices.Len())
		assert.True(t, devices.full())
		for i, d := range devices.Devices() {
			assert.Equal(t, "VENDOR"+string(rune('0'+i)), d.Manufacturer)
		}
	})

	t.Run("only empty slots", func(t *testing.T) {
		devices := ParseScanbus(strings.NewReader(scanbusHeader + "\t0,0,0\t  0) *\n\t0,1,0\t  1) *\n"))

		assert.Equal(t, 0, devices.Len())
		_, ok := devices.Selected()
		assert.False(t, ok)
	})

	t.Run("malformed line does not stop the scan", func(t *testing.T) {
		input := "\t0,0,0\t  0) 'NEC     ' Removable CD-ROM\n" +
			"\t0,1,0\t  1) 'SONY    ' 'DVD RW DRU-880S ' '1.63' Removable CD-ROM\n"
		devices := ParseScanbus(strings.NewReader(input))

		require.Equal(t, 2, devices.Len())
		first, _ := devices.At(0)
		assert.Equal(t, "NEC", first.Manufacturer)
		assert.Empty(t, first.Model)
		second, _ := devices.At(1)
		assert.Equal(t, "DVD RW DRU-880S", second.Model)
	})

	t.Run("identical input gives identical tables", func(t *testing.T) {
		first := ParseScanbus(strings.NewReader(scanbusTwoDrives))
		second := ParseScanbus(strings.NewReader(scanbusTwoDrives))
		assert.Equal(t, first, second)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, 0, ParseScanbus(strings.NewReader("")).Len())
	})
}

func TestReadScanLines(t *testing.T) {
	t.Run("line limit", func(t *testing.T) {
		input := strings.Repeat("line\n", maxScanLines+10)
		lines, err := readScanLines(strings.NewReader(input))

		require.NoError(t, err)
		assert.Len(t, lines, maxScanLines)
	})

	t.Run("device past the line limit is not read", func(t *testing.T) {
		input := strings.Repeat("\n", maxScanLines) +
			"\t0,0,0\t  0) 'HL-DT-ST' 'DVDRAM GH24NSD1 ' 'LG00' Removable CD-ROM\n"
		assert.Equal(t, 0, ParseScanbus(strings.NewReader(input)).Len())
	})

	t.Run("long lines are truncated", func(t *testing.T) {
		input := strings.Repeat("x", 2000) + "\nnext\n"
		lines, err := readScanLines(strings.NewReader(input))

		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Len(t, lines[0], maxLineLength)
		assert.Equal(t, "next", lines[1])
	})

	t.Run("endless line is read in bounded chunks", func(t *testing.T) {
		r := io.MultiReader(io.LimitReader(repeatReader('x'), 50<<20), strings.NewReader("\nnext\n"))
		lines, err := readScanLines(r)

		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, strings.Repeat("x", maxLineLength), lines[0])
		assert.Equal(t, "next", lines[1])
	})

	t.Run("cut keeps whole runes", func(t *testing.T) {
		lines, err := readScanLines(strings.NewReader(strings.Repeat("é", 300) + "\n"))

		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.True(t, utf8.ValidString(lines[0]))
		assert.Len(t, lines[0], 510)
	})

	t.Run("last line without newline", func(t *testing.T) {
		lines, err := readScanLines(strings.NewReader("a\r\nb"))

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, lines)
	})

	t.Run("read error keeps earlier lines", func(t *testing.T) {
		r := io.MultiReader(strings.NewReader("a\n"), errReader{})
		lines, err := readScanLines(r)

		assert.Error(t, err)
		assert.Equal(t, []string{"a"}, lines)
	})
}

func TestDeviceTable(t *testing.T) {
	devices := NewDeviceTable()
	for i := 0; i < MaxDevices; i++ {
		require.True(t, devices.add(DeviceRecord{BusNumber: string(rune('0' + i))}))
	}
	assert.False(t, devices.add(DeviceRecord{BusNumber: "overflow"}))

	require.NoError(t, devices.Select(3))
	selected, ok := devices.Selected()
	require.True(t, ok)
	assert.Equal(t, "3", selected.BusNumber)

	assert.ErrorIs(t, devices.Select(MaxDevices), ErrNoSuchDevice)
	assert.ErrorIs(t, devices.Select(-1), ErrNoSuchDevice)
	assert.Equal(t, 3, devices.SelectedIndex())

	_, err := devices.At(7)
	assert.ErrorIs(t, err, ErrNoSuchDevice)

	empty := NewDeviceTable()
	assert.ErrorIs(t, empty.Select(0), ErrNoSuchDevice)
}

func TestDeviceRecordString(t *testing.T) {
	d := DeviceRecord{BusNumber: "0,0,0", Manufacturer: "HL-DT-ST", Model: "DVDRAM GH24NSD1"}
	assert.Equal(t, "HL-DT-ST DVDRAM GH24NSD1 (0,0,0)", d.String())
}

// repeatReader yields the same byte forever
type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}

// fakeOutput is a canned command output that records how often it was closed
type fakeOutput struct {
	io.Reader
	closed   int
	closeErr error
}

func (f *fakeOutput) Close() error {
	f.closed++
	return f.closeErr
}

func fakeRunner(out *fakeOutput, launchErr error) (commandRunner, *[]string) {
	var invoked []string
	run := func(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
		invoked = append([]string{name}, args...)
		if launchErr != nil {
			return nil, launchErr
		}
		return out, nil
	}
	return run, &invoked
}

func TestScannerScan(t *testing.T) {
	cfg := ScannerConfig{Command: "cdrecord", Args: []string{"-scanbus"}}

	t.Run("parses command output", func(t *testing.T) {
		out := &fakeOutput{Reader: strings.NewReader(scanbusTwoDrives)}
		scanner := NewScanner(cfg, nil)
		var invoked *[]string
		scanner.run, invoked = fakeRunner(out, nil)

		devices, err := scanner.Scan(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, devices.Len())
		assert.Equal(t, []string{"cdrecord", "-scanbus"}, *invoked)
		assert.Equal(t, 1, out.closed)
	})

	t.Run("launch failure yields empty table", func(t *testing.T) {
		scanner := NewScanner(cfg, nil)
		scanner.run, _ = fakeRunner(nil, exec.ErrNotFound)

		devices, err := scanner.Scan(context.Background())

		require.NotNil(t, devices)
		assert.Equal(t, 0, devices.Len())
		assert.ErrorIs(t, err, ErrScanLaunch)
		assert.ErrorIs(t, err, exec.ErrNotFound)
	})

	t.Run("non-zero exit keeps parsed devices", func(t *testing.T) {
		out := &fakeOutput{
			Reader:   strings.NewReader(scanbusTwoDrives),
			closeErr: errors.New("exit status 1"),
		}
		scanner := NewScanner(cfg, nil)
		scanner.run, _ = fakeRunner(out, nil)

		devices, err := scanner.Scan(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 2, devices.Len())
		assert.Equal(t, 1, out.closed)
	})

	t.Run("stream closed after read error", func(t *testing.T) {
		out := &fakeOutput{Reader: io.MultiReader(strings.NewReader(scanbusTwoDrives), errReader{})}
		scanner := NewScanner(cfg, nil)
		scanner.run, _ = fakeRunner(out, nil)

		devices, err := scanner.Scan(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 2, devices.Len())
		assert.Equal(t, 1, out.closed)
	})

	t.Run("cancelled scan reports interruption", func(t *testing.T) {
		out := &fakeOutput{Reader: strings.NewReader("")}
		scanner := NewScanner(cfg, nil)
		scanner.run, _ = fakeRunner(out, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		devices, err := scanner.Scan(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, devices.Len())
	})
}

func TestScannerTimeout(t *testing.T) {
	t.Run("stalled output", func(t *testing.T) {
		scanner := NewScanner(ScannerConfig{Command: "cdrecord", Timeout: 50 * time.Millisecond}, nil)
		scanner.run = func(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
			pr, _ := io.Pipe()
			return pr, nil
		}

		start := time.Now()
		devices, err := scanner.Scan(context.Background())

		assert.Less(t, time.Since(start), 2*time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 0, devices.Len())
	})

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{name: "direct child", command: "sleep", args: []string{"5"}},
		{name: "shell wrapper", command: "sh", args: []string{"-c", "sleep 5; echo done"}},
		{name: "background descendant", command: "sh", args: []string{"-c", "sleep 5 & echo started"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := NewScanner(ScannerConfig{
				Command: tt.command,
				Args:    tt.args,
				Timeout: 100 * time.Millisecond,
			}, nil)

			start := time.Now()
			devices, err := scanner.Scan(context.Background())

			assert.Less(t, time.Since(start), 3*time.Second)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Equal(t, 0, devices.Len())
		})
	}
}

func TestExecRunner(t *testing.T) {
	t.Run("missing command", func(t *testing.T) {
		_, err := execRunner(context.Background(), "burnitnow-no-such-tool")
		assert.Error(t, err)
	})

	t.Run("reads output and reaps once", func(t *testing.T) {
		if _, err := exec.LookPath("echo"); err != nil {
			t.Skip("echo not available")
		}
		out, err := execRunner(context.Background(), "echo", "hello")
		require.NoError(t, err)

		data, err := io.ReadAll(out)
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(data))

		assert.NoError(t, out.Close())
		assert.NoError(t, out.Close())
	})
}
