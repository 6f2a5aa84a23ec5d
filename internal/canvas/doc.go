// Package canvas turns a Slack canvas block tree into an ordered list of audio
// references plus bounded plain text.
//
// Blocks are a tagged variant (File, RichText, Other). DecodeBlocks maps the
// upstream JSON into that closed set and Parse matches on the tag, so adding
// a variant means touching both places. When the block tree is unavailable,
// TextFromHTML and TextDocument recover a text-only document from the exported
// canvas body.
package canvas
