/*
Package workflow holds the data types shared by the workflow kernel and its
collaborators: the multi-valued Record document, the Plugin contract, the
Caller identity and the kernel error taxonomy.

A Record carries three reserved items that drive processing:

	$processid     current task (state) id, written by the kernel
	$activityid    requested activity (transition) id
	$modelversion  model version that governs the record

The kernel itself lives in the kernel sub-package; process models are loaded
and resolved by the model sub-package.

	models := model.NewRegistry()
	if _, err := model.LoadDir(models, "./models"); err != nil {
		log.Fatal(err)
	}

	k, err := kernel.New(models, kernel.WithCaller(workflow.StaticCaller("manfred")))
	if err != nil {
		log.Fatal(err)
	}

	rec := workflow.NewRecord().
		ReplaceItemValue(workflow.ItemModelVersion, "ticket").
		ReplaceItemValue(workflow.ItemProcessID, 1100).
		ReplaceItemValue(workflow.ItemActivityID, 20)

	rec, err = k.Process(ctx, rec)
*/
package workflow
