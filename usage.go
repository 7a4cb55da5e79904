package main

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
)

// Usage compares the size of a compilation against a media capacity
type Usage struct {
	Used     int64
	Capacity int64
}

// Free returns the remaining space, zero when the compilation overflows
func (u Usage) Free() int64 {
	if u.Used >= u.Capacity {
		return 0
	}
	return u.Capacity - u.Used
}

// Overflow returns how many bytes do not fit on the media
func (u Usage) Overflow() int64 {
	if u.Used <= u.Capacity {
		return 0
	}
	return u.Used - u.Capacity
}

// Fraction returns the used share of the media, capped at 1
func (u Usage) Fraction() float64 {
	if u.Capacity <= 0 {
		return 0
	}
	f := float64(u.Used) / float64(u.Capacity)
	if f > 1 {
		return 1
	}
	return f
}

// MeasureCompilation sums the sizes of all regular files below root
func MeasureCompilation(root string) (int64, error) {
	var total int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure compilation: %w", err)
	}

	return total, nil
}

// formatMiB formats a byte count in MiB
func formatMiB(n int64) string {
	return fmt.Sprintf("%.1f MiB", float64(n)/(1024*1024))
}

// renderUsage draws the disk usage bar followed by a summary
func renderUsage(w io.Writer, u Usage, media MediaType) {
	bar := progressbar.NewOptions64(u.Capacity,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(media.Name),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetRenderBlankState(true),
	)

	used := u.Used
	if used > u.Capacity {
		used = u.Capacity
	}
	bar.Set64(used)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Used: %s of %s (%.0f%%)\n", formatMiB(u.Used), formatMiB(u.Capacity), u.Fraction()*100)
	if overflow := u.Overflow(); overflow > 0 {
		fmt.Fprintf(w, "Overflow: %s does not fit on %s\n", formatMiB(overflow), media.Name)
	} else {
		fmt.Fprintf(w, "Free: %s\n", formatMiB(u.Free()))
	}
}
