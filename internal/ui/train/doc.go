// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package train is the training tab: run progress per stage, the model
// service toggle and the training log tail.
package train
