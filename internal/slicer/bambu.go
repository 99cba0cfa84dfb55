package slicer

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
)

const (
	bambuProjectSettingsPath = "Metadata/project_settings.config"
	bambuSliceInfoPath       = "Metadata/slice_info.config"
	bambuThumbnailPath       = "Metadata/plate_1.png"
	bambuHeaderMarker        = "X-BBL"
)

// BambuParser извлекает профиль из 3MF-контейнеров Bambu Studio.
// Bambu хранит настройки проекта в JSON (project_settings.config) и
// результаты слайсинга в XML (slice_info.config).
type BambuParser struct{}

func (p *BambuParser) Type() string {
	return TypeBambu
}

// CanParse проверяет фирменный заголовок X-BBL в slice_info.config.
// OrcaSlicer (форк) пишет те же файлы, но без этого заголовка.
func (p *BambuParser) CanParse(contents map[string][]byte) bool {
	sliceInfo, ok := contents[bambuSliceInfoPath]
	if !ok {
		return false
	}
	return bytes.Contains(sliceInfo, []byte(bambuHeaderMarker))
}

// bambuProjectSettings — интересующее нас подмножество project_settings.config.
// Per-filament поля Bambu хранит массивами строк, по элементу на экструдер.
type bambuProjectSettings struct {
	PrinterModel      string   `json:"printer_model"`
	PrinterSettingsID string   `json:"printer_settings_id"`
	LayerHeight       string   `json:"layer_height"`
	SparseInfill      string   `json:"sparse_infill_density"`
	NozzleTemperature []string `json:"nozzle_temperature"`
	HotPlateTemp      []string `json:"hot_plate_temp"`
	BedTemperature    []string `json:"bed_temperature"`
	FilamentType      []string `json:"filament_type"`
	FilamentColour    []string `json:"filament_colour"`
}

type bambuSliceInfo struct {
	XMLName xml.Name         `xml:"config"`
	Header  bambuSliceHeader `xml:"header"`
	Plates  []bambuPlate     `xml:"plate"`
}

type bambuSliceHeader struct {
	Items []bambuKeyValue `xml:"header_item"`
}

type bambuKeyValue struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type bambuPlate struct {
	Metadata  []bambuKeyValue `xml:"metadata"`
	Objects   []bambuObject   `xml:"object"`
	Filaments []bambuFilament `xml:"filament"`
}

type bambuObject struct {
	IdentifyID string `xml:"identify_id,attr"`
	Name       string `xml:"name,attr"`
	Skipped    string `xml:"skipped,attr"`
}

type bambuFilament struct {
	ID    string `xml:"id,attr"`
	Type  string `xml:"type,attr"`
	Color string `xml:"color,attr"`
	UsedG string `xml:"used_g,attr"`
}

func (p *BambuParser) Parse(contents map[string][]byte) (*ParsedProfile, error) {
	settingsData, ok := contents[bambuProjectSettingsPath]
	if !ok {
		return nil, fmt.Errorf("missing %s", bambuProjectSettingsPath)
	}

	var settings bambuProjectSettings
	if err := json.Unmarshal(settingsData, &settings); err != nil {
		return nil, fmt.Errorf("invalid project settings: %w", err)
	}

	var sliceInfo bambuSliceInfo
	if data, ok := contents[bambuSliceInfoPath]; ok {
		if err := xml.Unmarshal(data, &sliceInfo); err != nil {
			return nil, fmt.Errorf("invalid slice info: %w", err)
		}
	}

	profile := &ParsedProfile{
		PrinterName: firstNonEmpty(settings.PrinterModel, settings.PrinterSettingsID),
		Thumbnail:   contents[bambuThumbnailPath],
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

	// вес: предпочитаем сумму по филаментам, иначе метаданные плиты
	if profile.Metadata.FilamentWeightGrams == nil {
		var weight float64
		for _, plate := range sliceInfo.Plates {
			for _, meta := range plate.Metadata {
				if meta.Key == "weight" {
					if v, ok := parseFloat(meta.Value); ok {
						weight += v
					}
				}
			}
		}
		if weight > 0 {
			profile.Metadata.FilamentWeightGrams = &weight
		}
	}

	return profile, nil
}

func bambuFilamentsFromSliceInfo(plates []bambuPlate) []Filament {
	var filaments []Filament
	for _, plate := range plates {
		for _, f := range plate.Filaments {
			weight, _ := parseFloat(f.UsedG)
			filaments = append(filaments, Filament{
				Type:        f.Type,
				Color:       f.Color,
				WeightGrams: weight,
			})
		}
	}
	return filaments
}
