package minioctrl

import "testing"

func TestParseObjectURL(t *testing.T) {
	tests := []struct {
		url        string
		wantBucket string
		wantObject string
		wantOK     bool
	}{
		{"s3://ingest-documents/2024/permits.json", "ingest-documents", "2024/permits.json", true},
		{"s3://bucket/", "", "", false},
		{"s3://bucket", "", "", false},
		{"./data/permits.json", "", "", false},
		{"bucket/object", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, object, ok := ParseObjectURL(tt.url)
			if bucket != tt.wantBucket || object != tt.wantObject || ok != tt.wantOK {
				t.Errorf("ParseObjectURL(%q) = %q, %q, %v, want %q, %q, %v",
					tt.url, bucket, object, ok, tt.wantBucket, tt.wantObject, tt.wantOK)
			}
		})
	}

	if got := ObjectURL("b", "o.json"); got != "s3://b/o.json" {
		t.Errorf("ObjectURL() = %q", got)
	}
}
