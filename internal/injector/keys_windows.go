//go:build windows

package injector

// vkCode is a Win32 virtual-key code.
type vkCode uint16

var namedVirtualKeys = map[string]vkCode{
	"backspace":   0x08,
	"tab":         0x09,
	"enter":       0x0D,
	"return":      0x0D,
	"shift":       0x10,
	"ctrl":        0x11,
	"control":     0x11,
	"alt":         0x12,
	"pause":       0x13,
	"capslock":    0x14,
	"esc":         0x1B,
	"escape":      0x1B,
	"space":       0x20,
	" ":           0x20,
	"pageup":      0x21,
	"pgup":        0x21,
	"pagedown":    0x22,
	"pgdn":        0x22,
	"end":         0x23,
	"home":        0x24,
	"left":        0x25,
	"up":          0x26,
	"right":       0x27,
	"down":        0x28,
	"printscreen": 0x2C,
	"insert":      0x2D,
	"delete":      0x2E,
	"del":         0x2E,
	"win":         0x5B,
	"winleft":     0x5B,
	"winright":    0x5C,
	"apps":        0x5D,
	"num0":        0x60,
	"num1":        0x61,
	"num2":        0x62,
	"num3":        0x63,
	"num4":        0x64,
	"num5":        0x65,
	"num6":        0x66,
	"num7":        0x67,
	"num8":        0x68,
	"num9":        0x69,
	"multiply":    0x6A,
	"add":         0x6B,
	"subtract":    0x6D,
	"decimal":     0x6E,
	"divide":      0x6F,
	"numlock":     0x90,
	"scrolllock":  0x91,
	"shiftleft":   0xA0,
	"shiftright":  0xA1,
	"ctrlleft":    0xA2,
	"ctrlright":   0xA3,
	"altleft":     0xA4,
	"altright":    0xA5,
	"volumemute":  0xAD,
	"volumedown":  0xAE,
	"volumeup":    0xAF,
	"nexttrack":   0xB0,
	"prevtrack":   0xB1,
	"stop":        0xB2,
	"playpause":   0xB3,
	";":           0xBA,
	"=":           0xBB,
	",":           0xBC,
	"-":           0xBD,
	".":           0xBE,
	"/":           0xBF,
	"`":           0xC0,
	"[":           0xDB,
	"\\":          0xDC,
	"]":           0xDD,
	"'":           0xDE,
}

// extendedVirtualKeys need KEYEVENTF_EXTENDEDKEY to reach the right scan code.
var extendedVirtualKeys = map[vkCode]struct{}{
	0x21: {}, 0x22: {}, 0x23: {}, 0x24: {},
	0x25: {}, 0x26: {}, 0x27: {}, 0x28: {},
	0x2C: {}, 0x2D: {}, 0x2E: {},
	0x5B: {}, 0x5C: {}, 0x5D: {},
	0x6F: {}, 0x90: {},
	0xA3: {}, 0xA5: {},
}

// lookupVirtualKey maps a key name to its virtual-key code.
func lookupVirtualKey(name string) (vkCode, bool) {
	key := NormalizeKey(name)
	if name == " " {
		key = " "
	}
	if vk, ok := namedVirtualKeys[key]; ok {
		return vk, true
	}
	if len(key) == 1 {
		c := key[0]
		switch {
		case c >= 'a' && c <= 'z':
			return vkCode(c - 'a' + 'A'), true
		case c >= '0' && c <= '9':
			return vkCode(c), true
		}
	}
	// f1..f24
	if len(key) >= 2 && len(key) <= 3 && key[0] == 'f' {
		n := 0
		for _, r := range key[1:] {
			if r < '0' || r > '9' {
				return 0, false
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 24 {
			return vkCode(0x70 + n - 1), true
		}
	}
	return 0, false
}
