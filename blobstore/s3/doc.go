// Package s3 stores embeddings files in Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("embeddings/"))
//	if err != nil {
//	    return err
//	}
//	e, err := fusion.Open(ctx, fusion.Remote(store, "wiki.fifu"))
//
// Reads use ranged GETs, writes stream through the multipart upload manager.
package s3
