// Package minio stores sample index documents in MinIO or any other S3
// compatible server (Ceph, Garage, SeaweedFS) without the AWS SDK.
//
//	store, err := minio.New("localhost:9000", "genomes",
//	    minio.WithPrefix("sample-index/"),
//	    minio.WithStaticCredentials(accessKey, secretKey),
//	)
//	if err != nil {
//	    return err
//	}
//	backend := document.New(store, "study", schemaVersion)
//
// Without WithStaticCredentials the credentials are read from MINIO_ROOT_USER
// and MINIO_ROOT_PASSWORD, then from the AWS_ environment variables.
package minio
