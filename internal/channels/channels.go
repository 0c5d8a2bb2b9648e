// Package channels defines the sensor vocabulary: the stable mapping from a
// channel name to its index inside an activation vector.
package channels

// Blendshapes lists the face blendshape channels in the order the perception
// pipeline emits them.
var Blendshapes = []string{
	"_neutral",
	"browDownLeft",
	"browDownRight",
	"browInnerUp",
	"browOuterUpLeft",
	"browOuterUpRight",
	"cheekPuff",
	"cheekSquintLeft",
	"cheekSquintRight",
	"eyeBlinkLeft",
	"eyeBlinkRight",
	"eyeLookDownLeft",
	"eyeLookDownRight",
	"eyeLookInLeft",
	"eyeLookInRight",
	"eyeLookOutLeft",
	"eyeLookOutRight",
	"eyeLookUpLeft",
	"eyeLookUpRight",
	"eyeSquintLeft",
	"eyeSquintRight",
	"eyeWideLeft",
	"eyeWideRight",
	"jawForward",
	"jawLeft",
	"jawOpen",
	"jawRight",
	"mouthClose",
	"mouthDimpleLeft",
	"mouthDimpleRight",
	"mouthFrownLeft",
	"mouthFrownRight",
	"mouthFunnel",
	"mouthLeft",
	"mouthLowerDownLeft",
	"mouthLowerDownRight",
	"mouthPressLeft",
	"mouthPressRight",
	"mouthPucker",
	"mouthRight",
	"mouthRollLower",
	"mouthRollUpper",
	"mouthShrugLower",
	"mouthShrugUpper",
	"mouthSmileLeft",
	"mouthSmileRight",
	"mouthStretchLeft",
	"mouthStretchRight",
	"mouthUpperUpLeft",
	"mouthUpperUpRight",
	"noseSneerLeft",
	"noseSneerRight",
}

// Vocabulary resolves channel names to vector indices.
type Vocabulary struct {
	names   []string
	indices map[string]int
}

// New builds a Vocabulary from names in vector order. Duplicate names keep
// their first index.
func New(names []string) *Vocabulary {
	v := &Vocabulary{
		names:   make([]string, len(names)),
		indices: make(map[string]int, len(names)),
	}
	copy(v.names, names)
	for i, name := range names {
		if _, exists := v.indices[name]; exists {
			continue
		}
		v.indices[name] = i
	}
	return v
}

// Default returns the blendshape vocabulary.
func Default() *Vocabulary {
	return New(Blendshapes)
}

// Index returns the vector index of name.
func (v *Vocabulary) Index(name string) (int, bool) {
	i, ok := v.indices[name]
	return i, ok
}

// Contains reports whether name is a known channel.
func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.indices[name]
	return ok
}

// Len returns the vector length the vocabulary describes.
func (v *Vocabulary) Len() int { return len(v.names) }

// Names returns a copy of the channel names in vector order.
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Value reads channel name from vector. ok is false when the channel is
// unknown or the vector is too short to hold it.
func (v *Vocabulary) Value(vector []float64, name string) (float64, bool) {
	i, ok := v.Index(name)
	if !ok || i >= len(vector) {
		return 0, false
	}
	return vector[i], true
}
