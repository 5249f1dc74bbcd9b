// Package cli implements the kbupload command-line client.
//
// It wires configuration, the chunk store transport (HTTP or S3), the local
// task journal and the upload coordinator, then runs one subcommand:
//
//	upload [-org TAG] [-public] [-resume] FILE...
//	status HASH
//	delete HASH
//	history [-status S] [-prune]
//	files
//	resume
//	retry HASH...
//	watch [-org TAG] [-public] DIR
//	login | logout | version
//
// Uploads print one line per task state change and return an error when any
// task ends broken. See App.Run.
package cli
