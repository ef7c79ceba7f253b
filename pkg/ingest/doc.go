/*
Package ingest drains a remote "pending" folder into a local directory.

	+-----------+    list     +-----------+
	|  pending  | ----------> |  RunOnce  |
	+-----------+             +-----+-----+
	                                |  per file, bounded by Concurrency
	                                v
	        metadata -> download -> evaluate -> move
	                                              |
	                      +-----------------------+--------------------+
	                      v                                            v
	               +-------------+                           +------------------+
	               |  processed  |                           |  not-processed   |
	               +-------------+                           +------------------+

🎯 Purpose:
  - Every file in pending is downloaded, judged by an evaluate.Evaluator and
    moved to exactly one of the two destination folders
  - Anything that fails stays in pending and is picked up again next run

🔄 Flow:
 1. List pending, ignoring subfolders
 2. Re-read each item, skipping it if it already left pending
 3. Stream the content into the sink (atomic write, checksummed)
 4. Evaluate the local file
 5. Move the item; only now does it leave pending

⚡ Failure handling:
  - Per-item failures land in RunReport.Failures with a FailureKind
  - Rejected credentials abort the whole run
  - Cancelling the context stops new items from starting

🤝 Interfaces:
  - remote.Client: the drive
  - sink.Sink: local storage
  - Journal: durable attempt history (see pkg/state)
  - Observer: console progress (see pkg/log)
*/
package ingest
