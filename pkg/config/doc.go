/*
Package config loads and validates driveingest configuration.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+-----+ +----+----+ +-----+-----+
	|   YAML    | |   HCL   | |   JSON    |
	+-----------+ +---------+ +-----------+

🎯 Purpose:
  - One file describes one drive: its pending, processed and not-processed
    folders, the app registration used to reach it and where files land
  - The format is picked by extension; .driveingest tries YAML then HCL

🔄 Flow:
 1. Read the file and decode it with unknown fields rejected
 2. Validate required fields and folder distinctness
 3. Fill defaults (concurrency, request rate, state file, evaluator)
 4. Resolve relative paths against the config file's directory

🔑 Secrets:
The client secret is never required in the file. By default it is read from
DRIVEINGEST_CLIENT_SECRET; HCL files may also reference env.NAME directly.

🔍 Example:

	cfg, err := config.LoadConfig(ctx, ".driveingest.yaml")
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("fix %s: %s\n", verr.Field, verr.Problem)
		}
		return err
	}
*/
package config
