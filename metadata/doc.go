// Package metadata holds the free-form TOML document attached to embeddings.
//
// A parsed document remembers its source bytes and writes them back
// unchanged until it is mutated, so comments and layout survive a
// read/write cycle. After Set or Delete the document is re-encoded with keys
// in sorted order.
//
//	md, err := metadata.Parse([]byte("[model]\ndims = 300\n"))
//	v, ok := md.Get("model.dims") // int64(300)
//	err = md.Set("model.quantized", true)
package metadata
