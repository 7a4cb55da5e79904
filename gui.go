package main

import (
	"context"
	"fmt"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

// BurnWindow is the main application window
type BurnWindow struct {
	app    fyne.App
	window fyne.Window
	logger *zap.Logger

	// State shared with the rest of the application
	devices  *DeviceTable
	settings *BurnSettings
	media    MediaType
	usage    Usage

	// Toolbar
	sessionSelect *widget.Select
	speedLabel    *widget.Label
	speedSlider   *widget.Slider
	deviceSelect  *widget.Select
	burnBtn       *widget.Button
	buildBtn      *widget.Button

	// Compilations
	tabs      *container.AppTabs
	dataEntry *widget.Entry

	// Disk usage
	usageBar    *widget.ProgressBar
	mediaSelect *widget.Select
}

// NewBurnWindow creates the main window for an already scanned device table
func NewBurnWindow(a fyne.App, devices *DeviceTable, settings *BurnSettings, media MediaType, logger *zap.Logger) *BurnWindow {
	window := a.NewWindow("BurnItNow")
	window.Resize(fyne.NewSize(720, 480))
	window.SetMaster()

	w := &BurnWindow{
		app:      a,
		window:   window,
		logger:   logger.With(zap.String("component", "window")),
		devices:  devices,
		settings: settings,
		media:    media,
		usage:    Usage{Capacity: media.Capacity()},
	}

	w.setupUI()
	return w
}

// setupUI builds the menu bar, toolbar, compilation tabs and disk usage view
func (w *BurnWindow) setupUI() {
	w.window.SetMainMenu(w.createMenuBar())

	content := container.NewBorder(
		w.createToolBar(),
		w.createDiskUsageView(),
		nil, nil,
		w.createTabView(),
	)
	w.window.SetContent(content)
}

func (w *BurnWindow) createMenuBar() *fyne.MainMenu {
	quitItem := fyne.NewMenuItem("Quit", func() {
		w.app.Quit()
	})
	quitItem.IsQuit = true

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("About ...", w.showAbout),
		fyne.NewMenuItemSeparator(),
		quitItem,
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("Usage Instructions", w.openHelp),
		fyne.NewMenuItem("Project Website", w.openWebsite),
	)

	return fyne.NewMainMenu(fileMenu, helpMenu)
}

func (w *BurnWindow) createToolBar() fyne.CanvasObject {
	// Session options
	multiSessionCheck := widget.NewCheck("MultiSession", func(on bool) { w.settings.MultiSession = on })
	onTheFlyCheck := widget.NewCheck("On The Fly", func(on bool) { w.settings.OnTheFly = on })
	dummyModeCheck := widget.NewCheck("Dummy Mode", func(on bool) { w.settings.DummyMode = on })
	ejectCheck := widget.NewCheck("Eject After Burning", func(on bool) { w.settings.EjectAfterBurning = on })

	sessionLabels := []string{}
	for _, mode := range SessionModes() {
		sessionLabels = append(sessionLabels, mode.Label())
	}
	w.sessionSelect = widget.NewSelect(sessionLabels, w.onSessionChanged)
	w.sessionSelect.SetSelected(w.settings.Session.Label())

	// TODO: take the speed range from the drive capabilities and the inserted media
	w.speedLabel = widget.NewLabel(w.settings.SpeedLabel())
	w.speedSlider = widget.NewSlider(MinBurnSpeed, MaxBurnSpeed)
	w.speedSlider.Step = 1
	w.speedSlider.Value = float64(w.settings.Speed())
	w.speedSlider.OnChanged = w.onSpeedChanged

	// Drive selection
	deviceOptions := []string{}
	for _, device := range w.devices.Devices() {
		deviceOptions = append(deviceOptions, device.String())
	}
	w.deviceSelect = widget.NewSelect(deviceOptions, w.onDeviceChanged)
	if len(deviceOptions) > 0 {
		w.deviceSelect.SetSelected(deviceOptions[w.devices.SelectedIndex()])
	} else {
		w.deviceSelect.PlaceHolder = "No devices found"
		w.deviceSelect.Disable()
	}

	w.burnBtn = widget.NewButtonWithIcon("Burn Disc", theme.MediaRecordIcon(), w.burnDisc)
	w.buildBtn = widget.NewButtonWithIcon("Build ISO", theme.DocumentSaveIcon(), w.buildImage)

	options := container.NewVBox(
		container.NewHBox(multiSessionCheck, onTheFlyCheck),
		container.NewHBox(dummyModeCheck, ejectCheck),
		w.sessionSelect,
	)

	controls := container.NewGridWithColumns(2,
		container.NewVBox(w.speedLabel, w.speedSlider), w.burnBtn,
		w.deviceSelect, w.buildBtn,
	)

	return container.NewPadded(container.NewHBox(options, controls))
}

func (w *BurnWindow) createTabView() fyne.CanvasObject {
	w.dataEntry = widget.NewEntry()
	w.dataEntry.SetPlaceHolder("Folder to put on the disc")
	measureBtn := widget.NewButtonWithIcon("Measure", theme.FolderOpenIcon(), func() {
		w.measureCompilation(w.dataEntry.Text)
	})
	dataView := container.NewVBox(
		widget.NewLabel("Data compilation"),
		container.NewBorder(nil, nil, nil, measureBtn, w.dataEntry),
	)

	w.tabs = container.NewAppTabs(
		container.NewTabItem("Data", dataView),
		container.NewTabItem("Audio", widget.NewLabel("Audio compilation")),
		container.NewTabItem("Image", widget.NewLabel("Burn an existing image file")),
		container.NewTabItem("CDRW", widget.NewLabel("Blank a rewritable disc")),
	)
	return w.tabs
}

func (w *BurnWindow) createDiskUsageView() fyne.CanvasObject {
	w.usageBar = widget.NewProgressBar()
	w.usageBar.TextFormatter = func() string {
		return fmt.Sprintf("%s of %s", formatMiB(w.usage.Used), formatMiB(w.usage.Capacity))
	}

	mediaNames := []string{}
	for _, m := range MediaTypes() {
		mediaNames = append(mediaNames, m.Name)
	}
	w.mediaSelect = widget.NewSelect(mediaNames, w.onMediaChanged)
	w.mediaSelect.SetSelected(w.media.Name)

	media := widget.NewForm(widget.NewFormItem("Media:", w.mediaSelect))
	return container.NewPadded(container.NewBorder(nil, nil, nil, media, w.usageBar))
}

func (w *BurnWindow) onSessionChanged(label string) {
	mode, err := ParseSessionMode(label)
	if err != nil {
		w.logger.Warn("Ignoring session selection", zap.Error(err))
		return
	}
	w.settings.Session = mode
}

func (w *BurnWindow) onSpeedChanged(value float64) {
	w.settings.SetSpeed(int(math.Round(value)))
	w.speedLabel.SetText(w.settings.SpeedLabel())
}

func (w *BurnWindow) onDeviceChanged(option string) {
	for i, candidate := range w.deviceSelect.Options {
		if candidate != option {
			continue
		}
		if err := w.devices.Select(i); err != nil {
			w.logger.Warn("Ignoring device selection", zap.Error(err))
		}
		return
	}
}

func (w *BurnWindow) onMediaChanged(name string) {
	media, ok := GetMediaByName(name)
	if !ok {
		return
	}
	w.media = media
	w.usage.Capacity = media.Capacity()
	w.refreshUsage()
}

// measureCompilation updates the disk usage bar from a folder's size
func (w *BurnWindow) measureCompilation(path string) {
	if path == "" {
		return
	}
	used, err := MeasureCompilation(path)
	if err != nil {
		dialog.ShowError(err, w.window)
		return
	}
	w.usage.Used = used
	w.refreshUsage()
}

func (w *BurnWindow) refreshUsage() {
	if w.usageBar != nil {
		w.usageBar.SetValue(w.usage.Fraction())
	}
}

func (w *BurnWindow) burnDisc() {
	device, _ := w.devices.Selected()
	w.logger.Info("Burn requested",
		zap.String("device", device.BusNumber),
		zap.String("session", w.settings.Session.String()),
		zap.Int("speed", w.settings.Speed()),
	)
	dialog.ShowInformation("Burn Disc", notImplementedMessage, w.window)
}

func (w *BurnWindow) buildImage() {
	dialog.ShowInformation("Build ISO", notImplementedMessage, w.window)
}

func (w *BurnWindow) openWebsite() {
	dialog.ShowInformation("Project Website", notImplementedMessage, w.window)
}

func (w *BurnWindow) openHelp() {
	dialog.ShowInformation("Usage Instructions", notImplementedMessage, w.window)
}

func (w *BurnWindow) showAbout() {
	dialog.ShowInformation("About BurnItNow",
		fmt.Sprintf("BurnItNow %s\nAn optical disc burning front end.", version), w.window)
}

// Run shows the window and blocks until it is closed
func (w *BurnWindow) Run() {
	w.window.ShowAndRun()
}

// runGUI scans for drives once and opens the main window
func (a *application) runGUI(ctx context.Context) error {
	settings, err := settingsFromConfig(a.cfg.Burn)
	if err != nil {
		return err
	}
	media, err := a.mediaOrDefault("")
	if err != nil {
		return err
	}

	devices, _ := a.scanDevices(ctx)

	NewBurnWindow(app.New(), devices, &settings, media, a.logger).Run()
	return nil
}
