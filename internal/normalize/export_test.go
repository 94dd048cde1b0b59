package normalize

// ContentText exposes the content stream interpreter to black-box tests.
func ContentText(content []byte) string {
	pb := &pageBuilder{}
	writeContentText(pb, content)
	return pb.cur.String()
}
