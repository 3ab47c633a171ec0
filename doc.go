// Package fusion loads, converts, queries and compresses word embeddings.
//
// Embeddings are read from the native finalfusion container, word2vec
// binary, plain text or text with a shape header, from local files or any
// blobstore.BlobStore (S3, MinIO). Local finalfusion files are
// memory-mapped so that opening even very large models is cheap.
//
// # Quick Start
//
//	ctx := context.Background()
//	m, err := fusion.Open(ctx, fusion.Local("wiki.fifu"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	results, err := m.SearchWord("berlin").KNN(10).Execute(ctx)
//	answer, err := m.Analogy("berlin", "germany", "paris").First(ctx)
//
// # Conversion
//
// The format is guessed from the file name and can be forced with
// WithFormat:
//
//	m, _ := fusion.Open(ctx, fusion.Local("vectors.txt"), fusion.WithNormalize(true))
//	_ = m.Save(ctx, fusion.Local("vectors.fifu"))
//
// # Quantization
//
// Product quantization replaces every row by one byte per subspace:
//
//	cfg := quantization.DefaultConfig()
//	q, report, _ := m.Quantize(ctx, cfg)
//	fmt.Println(report.ReconstructionBound())
//
// # Evaluation
//
// Evaluate scores analogy files in the word2vec questions-words layout:
//
//	f, _ := os.Open("questions-words.txt")
//	report, _ := m.Evaluate(ctx, f)
//	fmt.Printf("%.2f%%\n", 100*report.Accuracy())
//
// # Observability
//
// Operations are logged through a Logger wrapping log/slog and reported to
// a MetricsCollector; both default to no-ops.
package fusion
