package browser

// KeyModifiers is the host-side modifier/button bitset attached to mouse
// events. It mirrors what the host's input layer tracks: keyboard
// modifiers plus which mouse buttons are currently held.
type KeyModifiers uint32

const (
	ModShift KeyModifiers = 1 << iota
	ModControl
	ModAlt
	ModLeftButton
	ModRightButton
	ModMiddleButton
)

// MouseButton identifies the button a press/release event refers to.
type MouseButton int

const (
	MouseButtonNone MouseButton = iota
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle
	MouseButtonX1
	MouseButtonX2
)

// MouseEventKind discriminates injected mouse events.
type MouseEventKind int

const (
	MouseMove MouseEventKind = iota
	MouseDown
	MouseUp
	MouseWheel
	MouseHorizontalWheel
	MouseLeave
)

// VirtualKeys is the engine's native event-virtual-key representation of
// held modifiers and buttons.
type VirtualKeys uint32

const (
	VKLeftButton   VirtualKeys = 0x01
	VKRightButton  VirtualKeys = 0x02
	VKShift        VirtualKeys = 0x04
	VKControl      VirtualKeys = 0x08
	VKMiddleButton VirtualKeys = 0x10
	VKXButton1     VirtualKeys = 0x20
	VKXButton2     VirtualKeys = 0x40
)

// TranslateModifiers converts the host bitset into the engine's
// virtual-key representation.
func TranslateModifiers(mods KeyModifiers) VirtualKeys {
	var vk VirtualKeys
	if mods&ModShift != 0 {
		vk |= VKShift
	}
	if mods&ModControl != 0 {
		vk |= VKControl
	}
	if mods&ModLeftButton != 0 {
		vk |= VKLeftButton
	}
	if mods&ModRightButton != 0 {
		vk |= VKRightButton
	}
	if mods&ModMiddleButton != 0 {
		vk |= VKMiddleButton
	}
	return vk
}

// MouseEvent is one injected mouse event in view-local coordinates.
type MouseEvent struct {
	Kind        MouseEventKind
	X, Y        int
	Button      MouseButton
	VirtualKeys VirtualKeys
	WheelDelta  int
}
