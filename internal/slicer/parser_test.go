package slicer

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildContainer собирает 3MF-контейнер (ZIP) из отображения имя -> байты.
func buildContainer(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const bambuSettingsJSON = `{
	"printer_model": "Bambu Lab X1 Carbon",
	"printer_settings_id": "X1C 0.4 nozzle",
	"layer_height": "0.2",
	"sparse_infill_density": "15%",
	"nozzle_temperature": ["220"],
	"hot_plate_temp": ["65"],
	"filament_type": ["PLA"],
	"filament_colour": ["#000000"]
}`

const bambuSliceInfoXML = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <header>
    <header_item key="X-BBL-Client-Type" value="slicer"/>
  </header>
  <plate>
    <metadata key="prediction" value="5445"/>
    <metadata key="weight" value="25.5"/>
    <object identify_id="1" name="part" skipped="false"/>
    <object identify_id="2" name="part" skipped="true"/>
    <filament id="1" type="PLA" color="#000000" used_g="25.5"/>
  </plate>
</config>`

const orcaSliceInfoXML = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <plate>
    <metadata key="prediction" value="1h 30m 45s"/>
    <object identify_id="1" name="part" skipped="false"/>
  </plate>
</config>`

const prusaConfigINI = `; generated by PrusaSlicer
; printer_settings_id = Original Prusa MK4
; printer_model = MK4
; layer_height = 0.25
; fill_density = 20%
; temperature = 215
; bed_temperature = 60
; filament_type = PETG
; filament_colour = #FF0000
; estimated printing time = 2h 10m
`

func bambuContainer(t *testing.T) []byte {
	return buildContainer(t, map[string][]byte{
		"Metadata/project_settings.config": []byte(bambuSettingsJSON),
		"Metadata/slice_info.config":       []byte(bambuSliceInfoXML),
		"Metadata/plate_1.png":             []byte("png-bytes"),
	})
}

func TestParseBambu(t *testing.T) {
	profile, err := ParseBytes(bambuContainer(t))
	require.NoError(t, err)

	assert.Equal(t, TypeBambu, profile.SlicerType)
	assert.Equal(t, "Bambu Lab X1 Carbon", profile.PrinterName)
	assert.Equal(t, "x1 carbon", profile.NormalizedPrinterName)
	assert.Equal(t, []byte("png-bytes"), profile.Thumbnail)

	require.NotNil(t, profile.Metadata.PrintTimeSeconds)
	assert.Equal(t, int64(5445), *profile.Metadata.PrintTimeSeconds)

	require.NotNil(t, profile.Metadata.LayerHeightMm)
	assert.InDelta(t, 0.2, *profile.Metadata.LayerHeightMm, 0.001)

	require.NotNil(t, profile.Metadata.InfillPercent)
	assert.Equal(t, 15, *profile.Metadata.InfillPercent)

	require.NotNil(t, profile.Metadata.NozzleTempC)
	assert.Equal(t, 220, *profile.Metadata.NozzleTempC)

	require.NotNil(t, profile.Metadata.BedTempC)
	assert.Equal(t, 65, *profile.Metadata.BedTempC)

	require.NotNil(t, profile.Metadata.FilamentSummary)
	assert.Equal(t, "PLA (#000000)", *profile.Metadata.FilamentSummary)

	require.NotNil(t, profile.Metadata.FilamentWeightGrams)
	assert.InDelta(t, 25.5, *profile.Metadata.FilamentWeightGrams, 0.001)

	// пропущенный объект не считается копией
	require.NotNil(t, profile.Metadata.PlateCopies)
	assert.Equal(t, 1, *profile.Metadata.PlateCopies)
}

// Контейнер с маркером X-BBL обязан разбираться как Bambu, хотя парсер
// Orca тоже узнает его файлы: порядок приоритета фиксирован.
func TestDispatcherPriorityBambuBeforeOrca(t *testing.T) {
	contents, err := ReadArchive(bambuContainer(t))
	require.NoError(t, err)

	require.True(t, (&OrcaParser{}).CanParse(contents))

	profile, err := NewDispatcher().Parse(contents)
	require.NoError(t, err)
	assert.Equal(t, TypeBambu, profile.SlicerType)
}

func TestParseOrca(t *testing.T) {
	data := buildContainer(t, map[string][]byte{
		"Metadata/project_settings.config": []byte(bambuSettingsJSON),
		"Metadata/slice_info.config":       []byte(orcaSliceInfoXML),
	})

	profile, err := ParseBytes(data)
	require.NoError(t, err)

	assert.Equal(t, TypeOrca, profile.SlicerType)
	assert.Equal(t, "Bambu Lab X1 Carbon", profile.PrinterName)

	require.NotNil(t, profile.Metadata.PrintTimeSeconds)
	assert.Equal(t, int64(5445), *profile.Metadata.PrintTimeSeconds)
}

func TestParsePrusa(t *testing.T) {
	data := buildContainer(t, map[string][]byte{
		"Metadata/Slic3r_PE.config": []byte(prusaConfigINI),
		"Metadata/thumbnail.png":    []byte("thumb"),
	})

	profile, err := ParseBytes(data)
	require.NoError(t, err)

	assert.Equal(t, TypePrusa, profile.SlicerType)
	assert.Equal(t, "Original Prusa MK4", profile.PrinterName)
	assert.Equal(t, "mk4", profile.NormalizedPrinterName)
	assert.Equal(t, []byte("thumb"), profile.Thumbnail)

	require.NotNil(t, profile.Metadata.PrintTimeSeconds)
	assert.Equal(t, int64(7800), *profile.Metadata.PrintTimeSeconds)

	require.NotNil(t, profile.Metadata.LayerHeightMm)
	assert.InDelta(t, 0.25, *profile.Metadata.LayerHeightMm, 0.001)

	require.NotNil(t, profile.Metadata.InfillPercent)
	assert.Equal(t, 20, *profile.Metadata.InfillPercent)

	require.NotNil(t, profile.Metadata.NozzleTempC)
	assert.Equal(t, 215, *profile.Metadata.NozzleTempC)

	require.NotNil(t, profile.Metadata.FilamentSummary)
	assert.Equal(t, "PETG (#FF0000)", *profile.Metadata.FilamentSummary)
}

func TestParseUnknownFormat(t *testing.T) {
	data := buildContainer(t, map[string][]byte{
		"3D/3dmodel.model": []byte("<model/>"),
	})

	_, err := ParseBytes(data)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseNotAZip(t *testing.T) {
	_, err := ParseBytes([]byte("solid benchy"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseBrokenBambuSettings(t *testing.T) {
	data := buildContainer(t, map[string][]byte{
		"Metadata/project_settings.config": []byte("{broken json"),
		"Metadata/slice_info.config":       []byte(bambuSliceInfoXML),
	})

	_, err := ParseBytes(data)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, TypeBambu, parseErr.SlicerType)
}

func TestParseDefaultsUnknownPrinterName(t *testing.T) {
	data := buildContainer(t, map[string][]byte{
		"Metadata/Slic3r_PE.config": []byte("layer_height = 0.2\n"),
	})

	profile, err := ParseBytes(data)
	require.NoError(t, err)

	assert.Equal(t, DefaultPrinterName, profile.PrinterName)
	assert.Equal(t, NormalizePrinterName(DefaultPrinterName), profile.NormalizedPrinterName)
}
