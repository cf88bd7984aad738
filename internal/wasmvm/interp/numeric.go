// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package interp

import "math"

// The unop*/binop* helpers convert untagged stack cells to the Go type an
// operator needs, apply it, and push the untagged result back. Splitting
// these from dispatchNumeric's giant switch keeps each case a one-liner.

func (m *Machine) unop32(f func(uint32) uint32) {
	a := uint32(m.popCell())
	m.pushCell(uint64(f(a)))
}

func (m *Machine) binop32(f func(a, b uint32) uint32) {
	b := uint32(m.popCell())
	a := uint32(m.popCell())
	m.pushCell(uint64(f(a, b)))
}

func (m *Machine) binop32Err(f func(a, b uint32) (uint32, error)) error {
	b := uint32(m.popCell())
	a := uint32(m.popCell())
	v, err := f(a, b)
	if err != nil {
		return err
	}
	m.pushCell(uint64(v))
	m.ip++
	return nil
}

func (m *Machine) unop64(f func(uint64) uint64) {
	a := m.popCell()
	m.pushCell(f(a))
}

func (m *Machine) unop64To32(f func(uint64) uint32) {
	a := m.popCell()
	m.pushCell(uint64(f(a)))
}

func (m *Machine) unop32To64(f func(uint32) uint64) {
	a := uint32(m.popCell())
	m.pushCell(f(a))
}

func (m *Machine) binop64(f func(a, b uint64) uint64) {
	b := m.popCell()
	a := m.popCell()
	m.pushCell(f(a, b))
}

func (m *Machine) binop64To32(f func(a, b uint64) uint32) {
	b := m.popCell()
	a := m.popCell()
	m.pushCell(uint64(f(a, b)))
}

func (m *Machine) binop64Err(f func(a, b uint64) (uint64, error)) error {
	b := m.popCell()
	a := m.popCell()
	v, err := f(a, b)
	if err != nil {
		return err
	}
	m.pushCell(v)
	m.ip++
	return nil
}

func (m *Machine) unopF32(f func(float32) float32) {
	a := math.Float32frombits(uint32(m.popCell()))
	m.pushCell(uint64(math.Float32bits(f(a))))
}

func (m *Machine) unopF32To32(f func(float32) uint32) {
	a := math.Float32frombits(uint32(m.popCell()))
	m.pushCell(uint64(f(a)))
}

func (m *Machine) unopF32To64(f func(float32) uint64) {
	a := math.Float32frombits(uint32(m.popCell()))
	m.pushCell(f(a))
}

func (m *Machine) unopF32ToF64(f func(float32) float64) {
	a := math.Float32frombits(uint32(m.popCell()))
	m.pushCell(math.Float64bits(f(a)))
}

func (m *Machine) unop32ToF32(f func(uint32) float32) {
	a := uint32(m.popCell())
	m.pushCell(uint64(math.Float32bits(f(a))))
}

func (m *Machine) unop64ToF32(f func(uint64) float32) {
	a := m.popCell()
	m.pushCell(uint64(math.Float32bits(f(a))))
}

func (m *Machine) binopF32(f func(a, b float32) float32) {
	b := math.Float32frombits(uint32(m.popCell()))
	a := math.Float32frombits(uint32(m.popCell()))
	m.pushCell(uint64(math.Float32bits(f(a, b))))
}

func (m *Machine) binopF32To32(f func(a, b float32) uint32) {
	b := math.Float32frombits(uint32(m.popCell()))
	a := math.Float32frombits(uint32(m.popCell()))
	m.pushCell(uint64(f(a, b)))
}

func (m *Machine) unopF64(f func(float64) float64) {
	a := math.Float64frombits(m.popCell())
	m.pushCell(math.Float64bits(f(a)))
}

func (m *Machine) unopF64To32(f func(float64) uint32) {
	a := math.Float64frombits(m.popCell())
	m.pushCell(uint64(f(a)))
}

func (m *Machine) unopF64To64(f func(float64) uint64) {
	a := math.Float64frombits(m.popCell())
	m.pushCell(f(a))
}

func (m *Machine) unopF64ToF32(f func(float64) float32) {
	a := math.Float64frombits(m.popCell())
	m.pushCell(uint64(math.Float32bits(f(a))))
}

func (m *Machine) unop32ToF64(f func(uint32) float64) {
	a := uint32(m.popCell())
	m.pushCell(math.Float64bits(f(a)))
}

func (m *Machine) unop64ToF64(f func(uint64) float64) {
	a := m.popCell()
	m.pushCell(math.Float64bits(f(a)))
}

func (m *Machine) binopF64(f func(a, b float64) float64) {
	b := math.Float64frombits(m.popCell())
	a := math.Float64frombits(m.popCell())
	m.pushCell(math.Float64bits(f(a, b)))
}

func (m *Machine) binopF64To32(f func(a, b float64) uint32) {
	b := math.Float64frombits(m.popCell())
	a := math.Float64frombits(m.popCell())
	m.pushCell(uint64(f(a, b)))
}
