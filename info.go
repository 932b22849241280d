// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ntag21x

// DriverVersion is the version of the codec reported by Info.
const DriverVersion = 1000

// ChipInfo is the static description of the supported chips.
type ChipInfo struct {
	ChipName         string
	Manufacturer     string
	Interface        string
	SupplyVoltageMin float64 // V
	SupplyVoltageMax float64 // V
	MaxCurrent       float64 // mA
	TemperatureMin   float64 // °C
	TemperatureMax   float64 // °C
	DriverVersion    int
}

// Info describes the chip family handled by this package.
func Info() ChipInfo {
	return ChipInfo{
		ChipName:         "NXP NTAG213/5/6",
		Manufacturer:     "NXP",
		Interface:        "RF",
		SupplyVoltageMin: 3.3,
		SupplyVoltageMax: 4.0,
		MaxCurrent:       30.0,
		TemperatureMin:   -25.0,
		TemperatureMax:   70.0,
		DriverVersion:    DriverVersion,
	}
}
