package model

import "fmt"

// Contract is the input layout a loaded model declares. It is resolved once
// when the model is opened and never re-inspected per request.
type Contract int

const (
	ContractUnknown Contract = iota
	// ContractFlat takes a {1, 784} tensor.
	ContractFlat
	// ContractImage takes a {1, 28, 28, 1} channels-last tensor.
	ContractImage
	// ContractImageNCHW takes a {1, 1, 28, 28} channels-first tensor.
	ContractImageNCHW
)

func (c Contract) String() string {
	switch c {
	case ContractFlat:
		return "flat"
	case ContractImage:
		return "image"
	case ContractImageNCHW:
		return "image_nchw"
	default:
		return "unknown"
	}
}

func (c Contract) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Contract) UnmarshalText(text []byte) error {
	switch string(text) {
	case "flat":
		*c = ContractFlat
	case "image":
		*c = ContractImage
	case "image_nchw":
		*c = ContractImageNCHW
	default:
		return fmt.Errorf("%w: contract %q", ErrBadShape, text)
	}
	return nil
}

// Shape returns the tensor shape for one sample under this contract.
func (c Contract) Shape() []int64 {
	switch c {
	case ContractFlat:
		return []int64{1, NumPixels}
	case ContractImage:
		return []int64{1, InputSize, InputSize, 1}
	case ContractImageNCHW:
		return []int64{1, 1, InputSize, InputSize}
	default:
		return nil
	}
}

// ResolveContract maps a declared model input shape to a contract. A leading
// batch dimension of -1 (dynamic) or 1 is accepted.
func ResolveContract(shape []int64) (Contract, error) {
	if len(shape) < 2 || (shape[0] != -1 && shape[0] != 1) {
		return ContractUnknown, fmt.Errorf("%w: %v", ErrBadShape, shape)
	}
	dims := shape[1:]
	switch {
	case equalDims(dims, NumPixels):
		return ContractFlat, nil
	case equalDims(dims, InputSize, InputSize, 1):
		return ContractImage, nil
	case equalDims(dims, 1, InputSize, InputSize):
		return ContractImageNCHW, nil
	}
	return ContractUnknown, fmt.Errorf("%w: %v", ErrBadShape, shape)
}

func equalDims(dims []int64, want ...int64) bool {
	if len(dims) != len(want) {
		return false
	}
	for i := range dims {
		if dims[i] != want[i] {
			return false
		}
	}
	return true
}
