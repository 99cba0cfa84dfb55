package slicer

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
)

const (
	orcaProjectSettingsPath = "Metadata/project_settings.config"
	orcaSliceInfoPath       = "Metadata/slice_info.config"
	orcaThumbnailPath       = "Metadata/plate_1.png"
)

// OrcaParser извлекает профиль из 3MF-контейнеров OrcaSlicer.
// Orca — форк Bambu Studio и пишет ту же структуру файлов, но без
// заголовков X-BBL; в приоритетном списке идет после BambuParser,
// поэтому здесь достаточно проверить наличие project_settings.config.
type OrcaParser struct{}

func (p *OrcaParser) Type() string {
	return TypeOrca
}

func (p *OrcaParser) CanParse(contents map[string][]byte) bool {
	_, ok := contents[orcaProjectSettingsPath]
	return ok
}

type orcaSliceInfo struct {
	XMLName xml.Name     `xml:"config"`
	Plates  []bambuPlate `xml:"plate"`
}

func (p *OrcaParser) Parse(contents map[string][]byte) (*ParsedProfile, error) {
	settingsData, ok := contents[orcaProjectSettingsPath]
	if !ok {
		return nil, fmt.Errorf("missing %s", orcaProjectSettingsPath)
	}

	var settings bambuProjectSettings
	if err := json.Unmarshal(settingsData, &settings); err != nil {
		return nil, fmt.Errorf("invalid project settings: %w", err)
	}

	profile := &ParsedProfile{
		PrinterName: firstNonEmpty(settings.PrinterModel, settings.PrinterSettingsID),
		Thumbnail:   contents[orcaThumbnailPath],
	}

	if v, ok := parseFloat(settings.LayerHeight); ok {
		profile.Metadata.LayerHeightMm = &v
	}
	if v, ok := parsePercent(settings.SparseInfill); ok {
		profile.Metadata.InfillPercent = &v
	}
	if v, ok := firstInt(settings.NozzleTemperature); ok {
		profile.Metadata.NozzleTempC = &v
	}
	if v, ok := firstInt(append(settings.HotPlateTemp, settings.BedTemperature...)); ok {
		profile.Metadata.BedTempC = &v
	}

	// slice_info у Orca опционален и без фирменного заголовка
	var sliceInfo orcaSliceInfo
	if data, ok := contents[orcaSliceInfoPath]; ok {
		if err := xml.Unmarshal(data, &sliceInfo); err != nil {
			return nil, fmt.Errorf("invalid slice info: %w", err)
		}
	}

	filaments := bambuFilamentsFromSliceInfo(sliceInfo.Plates)
	if len(filaments) == 0 {
		filaments = filamentsFromArrays(settings.FilamentType, settings.FilamentColour)
	}
	applyFilaments(&profile.Metadata, filaments)

	var totalSeconds int64
	var copies int
	for _, plate := range sliceInfo.Plates {
		for _, meta := range plate.Metadata {
			if meta.Key == "prediction" {
				if n, ok := ParseDurationSeconds(meta.Value); ok {
					totalSeconds += n
				}
			}
		}
		for _, obj := range plate.Objects {
			if obj.Skipped != "true" {
				copies++
			}
		}
	}
	if totalSeconds > 0 {
		profile.Metadata.PrintTimeSeconds = &totalSeconds
	}
	if copies > 0 {
		profile.Metadata.PlateCopies = &copies
	}

	return profile, nil
}
