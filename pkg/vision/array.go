package vision

import (
	"encoding/json"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// arrayFormat is the version tag written with every persisted Array.
const arrayFormat = 1

// Array is a dense row-major float64 array with an explicit shape. It is
// persisted as {"v":1,"dim":[...],"data":[...]}, the layout the calibration
// tooling has always written.
type Array struct {
	Dim  []int
	Data []float64
}

// NewArray returns an Array of the given shape backed by data. data is not copied.
func NewArray(data []float64, dim ...int) (Array, error) {
	a := Array{Dim: slices.Clone(dim), Data: data}
	if err := a.validate(); err != nil {
		return Array{}, err
	}
	return a, nil
}

// ArrayFromMatrix copies m into a 2-d Array.
func ArrayFromMatrix(m mat.Matrix) Array {
	r, c := m.Dims()
	a := Array{Dim: []int{r, c}, Data: make([]float64, r*c)}
	mat.NewDense(r, c, a.Data).Copy(m)
	return a
}

// ArrayFromVector copies v into a 1-d Array.
func ArrayFromVector(v mat.Vector) Array {
	n := v.Len()
	a := Array{Dim: []int{n}, Data: make([]float64, n)}
	for i := range a.Data {
		a.Data[i] = v.AtVec(i)
	}
	return a
}

// Empty reports whether the array holds no elements.
func (a Array) Empty() bool { return len(a.Data) == 0 }

// HasShape reports whether the array has exactly the given shape.
func (a Array) HasShape(dim ...int) bool { return slices.Equal(a.Dim, dim) }

// Clone returns a deep copy.
func (a Array) Clone() Array {
	return Array{Dim: slices.Clone(a.Dim), Data: slices.Clone(a.Data)}
}

// Dense returns a matrix view of a 2-d array. The matrix shares a.Data, so
// writes through it change the array.
func (a Array) Dense() (*mat.Dense, error) {
	if len(a.Dim) != 2 || a.Dim[0] == 0 || a.Dim[1] == 0 {
		return nil, fmt.Errorf("vision: array of shape %v is not a matrix", a.Dim)
	}
	return mat.NewDense(a.Dim[0], a.Dim[1], a.Data), nil
}

// Vec returns a vector view of a 1-d array sharing a.Data.
func (a Array) Vec() (*mat.VecDense, error) {
	if len(a.Dim) != 1 || a.Dim[0] == 0 {
		return nil, fmt.Errorf("vision: array of shape %v is not a vector", a.Dim)
	}
	return mat.NewVecDense(a.Dim[0], a.Data), nil
}

func (a Array) validate() error {
	n := 1
	for _, d := range a.Dim {
		if d < 0 {
			return fmt.Errorf("negative dimension in %v", a.Dim)
		}
		n *= d
	}
	if len(a.Dim) == 0 {
		n = 0
	}
	if n != len(a.Data) {
		return fmt.Errorf("shape %v needs %d elements, have %d", a.Dim, n, len(a.Data))
	}
	return nil
}

type arrayJSON struct {
	V    int       `json:"v"`
	Dim  []int     `json:"dim"`
	Data []float64 `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (a Array) MarshalJSON() ([]byte, error) {
	dim, data := a.Dim, a.Data
	if dim == nil {
		dim = []int{}
	}
	if data == nil {
		data = []float64{}
	}
	return json.Marshal(arrayJSON{V: arrayFormat, Dim: dim, Data: data})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Array) UnmarshalJSON(b []byte) error {
	var raw arrayJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.V != arrayFormat {
		return fmt.Errorf("vision: unsupported array format version %d", raw.V)
	}
	out := Array{Dim: raw.Dim, Data: raw.Data}
	if err := out.validate(); err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	// An uncalibrated array decodes to the zero Array.
	if len(out.Dim) == 0 && len(out.Data) == 0 {
		out = Array{}
	}
	*a = out
	return nil
}
