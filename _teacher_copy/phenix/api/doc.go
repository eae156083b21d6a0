/*
Implementation of all the phenix APIs.

The phenix API packages are designed to contain all the phenix-specific
business logic for creating, managing, and deploying experiments for use by
command-line applications, web applications, etc.

Config API

The config API handles the full management lifecycle of phenix config files
for topologies, scenarios, and experiments.

Experiment API

The experiment API handles the full management lifecycle of phenix
experiments, to include the application of phenix apps.

VM API

The vm API handles the management of running experiment VMs.
*/
package api
