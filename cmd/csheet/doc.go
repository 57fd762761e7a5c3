// Command csheet serves a folder of renders as a contact sheet, packs sheets
// into portable archives, and drives headless viewer sessions against a
// running server.
package main
