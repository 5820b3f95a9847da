package ui

// iconBytes is a 16x16 PNG used as the tray icon on all platforms.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x6c, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x60, 0x00, 0x82, 0x5f,
	0x67, 0x44, 0xff, 0xcb, 0x69, 0x5a, 0x93, 0x8c, 0x19, 0x60, 0x9a, 0x61,
	0x98, 0x2c, 0x43, 0x40, 0x04, 0x25, 0x86, 0x30, 0xc0, 0x18, 0xe4, 0x1a,
	0xc2, 0x80, 0xcc, 0x21, 0xc7, 0x10, 0x06, 0x74, 0x01, 0x52, 0x0d, 0x61,
	0xc0, 0x26, 0x48, 0x8a, 0x21, 0x0c, 0xb8, 0x24, 0x88, 0x35, 0x84, 0x01,
	0x9f, 0x24, 0x31, 0x86, 0x30, 0x10, 0x72, 0x22, 0x21, 0x43, 0x18, 0x88,
	0x09, 0x28, 0x7c, 0x86, 0x30, 0x10, 0x1b, 0x5d, 0xb8, 0x0c, 0x61, 0x20,
	0x25, 0xd1, 0x60, 0x33, 0x84, 0x81, 0xd4, 0xa4, 0x8b, 0x6e, 0x08, 0x03,
	0x39, 0x19, 0x08, 0xd9, 0x10, 0x70, 0x8e, 0x24, 0xd7, 0x10, 0x90, 0x5e,
	0x00, 0x6f, 0x4f, 0xb6, 0x58, 0x52, 0x24, 0xc1, 0x7c, 0x00, 0x00, 0x00,
	0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
