package main

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnknownMedia is returned for a media key that is not in the catalogue
var ErrUnknownMedia = errors.New("unknown media type")

// MediaType represents a blank disc the compilation is measured against
type MediaType struct {
	Key         string
	Name        string // label shown in the media menu
	CapacityMiB int64
}

// Capacity returns the media capacity in bytes
func (m MediaType) Capacity() int64 {
	return m.CapacityMiB * 1024 * 1024
}

// mediaTypes in menu order; the first entry is the default.
// TODO: add DVD5 (4.37GiB) and DVD9 (7.95GiB) once DVD burning is supported.
var mediaTypes = []MediaType{
	{Key: "cd-650", Name: "CD 650MiB", CapacityMiB: 650},
	{Key: "cd-700", Name: "CD 700MiB", CapacityMiB: 700},
}

// MediaTypes returns all available media types
func MediaTypes() []MediaType {
	types := make([]MediaType, len(mediaTypes))
	copy(types, mediaTypes)
	return types
}

// GetMediaByKey returns a media type by its key
func GetMediaByKey(key string) (MediaType, bool) {
	for _, m := range mediaTypes {
		if m.Key == key {
			return m, true
		}
	}
	return MediaType{}, false
}

// GetMediaByName returns a media type by its menu label
func GetMediaByName(name string) (MediaType, bool) {
	for _, m := range mediaTypes {
		if m.Name == name {
			return m, true
		}
	}
	return MediaType{}, false
}

// DefaultMedia returns the media selected when the window opens
func DefaultMedia() MediaType {
	return mediaTypes[0]
}

// listMedia prints all available media types
func listMedia(w io.Writer) {
	fmt.Fprintln(w, "Available media types:")
	fmt.Fprintln(w)

	for _, m := range mediaTypes {
		fmt.Fprintf(w, "  %-10s - %s (%d bytes)\n", m.Key, m.Name, m.Capacity())
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: burnitnow usage -m media-key <directory>")
}
