package gcs

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://mail/alerts/1.eml", "mail", "alerts/1.eml", false},
		{"gs://mail", "mail", "", false},
		{"gs:///x", "", "", true},
		{"s3://mail/x", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("got (%q, %q), want (%q, %q)", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}
