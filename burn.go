package main

import (
	"errors"
	"fmt"
	"io"
)

// ErrNotImplemented is returned by actions whose engine does not exist yet
var ErrNotImplemented = errors.New("not implemented yet")

// notImplementedMessage is shown by the window for stubbed actions
const notImplementedMessage = "Not Implemented Yet!"

// errNoDevice is returned when an action needs a drive and the scan found none
var errNoDevice = errors.New("no optical drive found (use 'burnitnow devices' to check)")

// burnDisc burns image to the selected drive. Only dry runs are supported:
// they print the command line the burn would use.
func burnDisc(w io.Writer, devices *DeviceTable, settings BurnSettings, tool, image string, dryRun bool) error {
	device, ok := devices.Selected()
	if !ok {
		return errNoDevice
	}

	if dryRun {
		fmt.Fprintln(w, GetBurningCommand(tool, settings, device, image))
		return nil
	}

	return fmt.Errorf("burn disc on %s: %w", device, ErrNotImplemented)
}

// buildImage builds an ISO image from a data compilation. The compilation is
// checked against the media capacity before the unimplemented build step.
func buildImage(w io.Writer, source string, media MediaType) error {
	used, err := MeasureCompilation(source)
	if err != nil {
		return err
	}

	usage := Usage{Used: used, Capacity: media.Capacity()}
	if overflow := usage.Overflow(); overflow > 0 {
		return fmt.Errorf("compilation exceeds %s by %s", media.Name, formatMiB(overflow))
	}

	fmt.Fprintf(w, "Compilation: %s (%s on %s)\n", source, formatMiB(used), media.Name)
	return fmt.Errorf("build image from %s: %w", source, ErrNotImplemented)
}

// showDevices prints the scan result with the selected drive marked
func showDevices(w io.Writer, devices *DeviceTable, scanErr error, tool string) {
	if devices.Len() == 0 {
		fmt.Fprintln(w, "No optical drives found.")
		if errors.Is(scanErr, ErrScanLaunch) {
			fmt.Fprintf(w, "Could not run '%s'. Is it installed and on your PATH?\n", tool)
		}
		return
	}

	fmt.Fprintf(w, "Found %d optical drive(s):\n", devices.Len())
	fmt.Fprintln(w)

	for i, d := range devices.Devices() {
		marker := " "
		if i == devices.SelectedIndex() {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %d  %-8s %-10s %s\n", marker, i, d.BusNumber, d.Manufacturer, d.Model)
	}
}
