// Package minio stores uploaded documents in an S3-compatible bucket and
// hands out presigned download URLs.
//
//	client, err := minio.NewClient(cfg, log, observer)
//	err = client.Upload(ctx, "documents/"+fingerprint, file, size)
//	data, err := client.Download(ctx, "documents/"+fingerprint)
//	link, err := client.SignedURL(ctx, "documents/"+fingerprint)
package minio
