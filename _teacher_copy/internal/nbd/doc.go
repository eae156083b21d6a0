// Copyright (2012) Sandia Corporation.
// Under the terms of Contract DE-AC04-94AL85000 with Sandia Corporation,
// the U.S. Government retains certain rights in this software.

// nbd provides methods for working with Network Block Devices. This relies on
// the nbd kernel module which can be checked for using the Ready() function.
package nbd
