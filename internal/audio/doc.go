// Package audio holds the format conversions used on both legs of the relay:
// stereo interleaving, PCM16 and float sample conversion, little-endian byte
// packing, the base64 transport encoding used by devices, and the Opus codec
// used by Discord.
//
// Discord voice is 48 kHz interleaved stereo, 20 ms (960 samples per channel)
// per Opus frame. Device payloads are base64 text wrapping PCM16LE stereo at
// the same rate.
package audio
