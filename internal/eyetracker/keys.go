package eyetracker

// Key is a host key code. Values follow the X11 keysym numbering used by
// most toolkits: printable ASCII maps to itself, function and editing keys
// live in the 0xff00 block.
type Key uint32

const (
	KeyBackSpace Key = 0xff08
	KeyTab       Key = 0xff09
	KeyReturn    Key = 0xff0d
	KeyEscape    Key = 0xff1b
	KeyHome      Key = 0xff50
	KeyLeft      Key = 0xff51
	KeyUp        Key = 0xff52
	KeyRight     Key = 0xff53
	KeyDown      Key = 0xff54
	KeyPageUp    Key = 0xff55
	KeyPageDown  Key = 0xff56
	KeyEnd       Key = 0xff57
	KeyKPEnter   Key = 0xff8d
	KeyF1        Key = 0xffbe
	KeyF2        Key = 0xffbf
	KeyF3        Key = 0xffc0
	KeyF4        Key = 0xffc1
	KeyF5        Key = 0xffc2
	KeyF6        Key = 0xffc3
	KeyF7        Key = 0xffc4
	KeyF8        Key = 0xffc5
	KeyF9        Key = 0xffc6
	KeyF10       Key = 0xffc7
	KeyF11       Key = 0xffc8
	KeyF12       Key = 0xffc9
)

// Modifier is a bitmask of held modifier keys
type Modifier uint32

const (
	ModShift   Modifier = 1 << 0
	ModControl Modifier = 1 << 2
	ModAlt     Modifier = 1 << 3
)
