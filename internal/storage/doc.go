/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the on-disk side of a scanlation workspace.
// It lays out repositories, projects and chapters as plain folders, scans a chapter's
// image folders, and persists the per-chapter status map (data/page_status.json) with
// atomic writes and a rolling backup. It also manages the workspace SQLite progress
// index at <storage>/.scanstation/index.sqlite, which is derived data and rebuildable.
package storage
