package slicer

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

const (
	prusaConfigPath         = "Metadata/Slic3r_PE.config"
	prusaThumbnailPath      = "Metadata/thumbnail.png"
	prusaThumbnailSmallPath = "Metadata/thumbnail_small.png"
)

// PrusaParser извлекает профиль из 3MF-контейнеров PrusaSlicer.
// PrusaSlicer хранит настройки в INI-подобном тексте key = value
// (Metadata/Slic3r_PE.config), значения мультиэкструдера разделены ";".
type PrusaParser struct{}

func (p *PrusaParser) Type() string {
	return TypePrusa
}

func (p *PrusaParser) CanParse(contents map[string][]byte) bool {
	_, ok := contents[prusaConfigPath]
	return ok
}

func (p *PrusaParser) Parse(contents map[string][]byte) (*ParsedProfile, error) {
	data, ok := contents[prusaConfigPath]
	if !ok {
		return nil, fmt.Errorf("missing %s", prusaConfigPath)
	}

	values, err := parsePrusaConfig(data)
	if err != nil {
		return nil, err
	}

	profile := &ParsedProfile{
		PrinterName: firstNonEmpty(values["printer_settings_id"], values["printer_model"]),
	}

	if thumb, ok := contents[prusaThumbnailPath]; ok {
		profile.Thumbnail = thumb
	} else {
		profile.Thumbnail = contents[prusaThumbnailSmallPath]
	}

	if v, ok := parseFloat(values["layer_height"]); ok {
		profile.Metadata.LayerHeightMm = &v
	}
	if v, ok := parsePercent(values["fill_density"]); ok {
		profile.Metadata.InfillPercent = &v
	}
	if v, ok := firstInt(splitPrusaList(values["temperature"])); ok {
		profile.Metadata.NozzleTempC = &v
	}
	if v, ok := firstInt(splitPrusaList(values["bed_temperature"])); ok {
		profile.Metadata.BedTempC = &v
	}

	filaments := filamentsFromArrays(
		splitPrusaList(values["filament_type"]),
		splitPrusaList(values["filament_colour"]),
	)
	applyFilaments(&profile.Metadata, filaments)

	// PrusaSlicer пишет оценку времени печати человекочитаемой строкой
	if estimate, ok := values["estimated printing time"]; ok {
		if n, ok := ParseDurationSeconds(estimate); ok && n > 0 {
			profile.Metadata.PrintTimeSeconds = &n
		}
	}

	return profile, nil
}

// parsePrusaConfig разбирает строки "key = value"; ведущие ";" допускаются,
// PrusaSlicer использует их в экспортированных вариантах конфига.
func parsePrusaConfig(data []byte) (map[string]string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimSpace(strings.TrimPrefix(line, ";"))
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("config contains no key = value pairs")
	}
	return values, nil
}

// splitPrusaList разбивает мультиэкструдерное значение на элементы.
func splitPrusaList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == ','
	})
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
