// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package easybus

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultFrequency is the poll period in milliseconds for channels that do
// not set one.
const DefaultFrequency = 1000

// CSVChannelParser handles conversion between CSV and DeviceChannel
type CSVChannelParser struct {
	headers []string
}

// NewCSVChannelParser creates a new CSV channel parser
func NewCSVChannelParser() *CSVChannelParser {
	return &CSVChannelParser{
		headers: []string{"tag", "alias", "address", "encoding", "frequency"},
	}
}

// ParseCSV parses CSV data and returns a slice of DeviceChannel
func (p *CSVChannelParser) ParseCSV(reader io.Reader) ([]DeviceChannel, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV file")
	}

	headerMap := make(map[string]int)
	for i, h := range records[0] {
		headerMap[strings.TrimSpace(h)] = i
	}
	for _, field := range []string{"tag", "address"} {
		if _, exists := headerMap[field]; !exists {
			return nil, fmt.Errorf("missing required field in CSV header: %s", field)
		}
	}

	var channels []DeviceChannel
	seen := make(map[string]int)
	for i, record := range records[1:] {
		rowNum := i + 2
		channel, err := p.parseChannelFromRecord(record, headerMap, rowNum)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", rowNum, err)
		}
		if prev, dup := seen[channel.Tag]; dup {
			return nil, fmt.Errorf("duplicate tag %s at rows %d and %d", channel.Tag, prev, rowNum)
		}
		seen[channel.Tag] = rowNum
		channels = append(channels, channel)
	}
	return channels, nil
}

// parseChannelFromRecord parses a single CSV record into a DeviceChannel
func (p *CSVChannelParser) parseChannelFromRecord(record []string, headerMap map[string]int, rowNum int) (DeviceChannel, error) {
	var channel DeviceChannel

	getField := func(fieldName string) string {
		if idx, exists := headerMap[fieldName]; exists && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	channel.Tag = getField("tag")
	if channel.Tag == "" {
		return channel, fmt.Errorf("'tag' is required at row %d", rowNum)
	}
	channel.Alias = getField("alias")

	addressStr := getField("address")
	if addressStr == "" {
		return channel, fmt.Errorf("'address' is required at row %d", rowNum)
	}
	address, err := strconv.ParseUint(addressStr, 10, 8)
	if err != nil {
		return channel, fmt.Errorf("invalid 'address' at row %d: %w", rowNum, err)
	}
	channel.Address = uint8(address)

	channel.Encoding, err = ParseValueEncoding(getField("encoding"))
	if err != nil {
		return channel, fmt.Errorf("at row %d: %w", rowNum, err)
	}

	channel.Frequency = DefaultFrequency
	if frequencyStr := getField("frequency"); frequencyStr != "" {
		frequency, err := strconv.ParseUint(frequencyStr, 10, 64)
		if err != nil {
			return channel, fmt.Errorf("invalid 'frequency' at row %d: %w", rowNum, err)
		}
		channel.Frequency = frequency
	}
	return channel, nil
}

// ToCSV converts a slice of DeviceChannel to CSV format
func (p *CSVChannelParser) ToCSV(channels []DeviceChannel, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(p.headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, ch := range channels {
		record := []string{
			ch.Tag,
			ch.Alias,
			strconv.FormatUint(uint64(ch.Address), 10),
			ch.Encoding.String(),
			strconv.FormatUint(ch.Frequency, 10),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record for channel %s: %w", ch.Tag, err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// ParseCSVFromString parses CSV data from a string
func (p *CSVChannelParser) ParseCSVFromString(csvData string) ([]DeviceChannel, error) {
	return p.ParseCSV(strings.NewReader(csvData))
}

// ToCSVString converts channels to CSV string
func (p *CSVChannelParser) ToCSVString(channels []DeviceChannel) (string, error) {
	var builder strings.Builder
	if err := p.ToCSV(channels, &builder); err != nil {
		return "", err
	}
	return builder.String(), nil
}
